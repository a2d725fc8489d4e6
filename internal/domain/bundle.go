package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// BundleKind is the closed vocabulary of semantic protocol operations a
// contiguous span of transfers can be classified as. The synthesizer
// dispatches on it exhaustively, so an unclassifiable span can never reach
// the accounting layer.
type BundleKind int

const (
	BundleDeposit BundleKind = iota
	BundleDepositAndTransfer
	BundleWithdraw
	BundleTransferAsset
	BundleTransferIncentive
	BundleTransferSecondaryIncentive
	BundleMintNToken
	BundleRedeemNToken
	BundleBuyFCash
	BundleSellFCash
	BundleBorrowFCash
	BundleRepayFCash
	BundleBuyFCashVault
	BundleSellFCashVault
	BundleBorrowPrimeCash
	BundleRepayPrimeCash
	BundleBorrowPrimeCashVault
	BundleRepayPrimeCashVault
	BundleSettleFCash
	BundleSettleFCashNToken
	BundleSettleFCashVault
	BundleSettleCash
	BundleSettleCashNToken
	BundleNTokenPurchasePositiveResidual
	BundleNTokenPurchaseNegativeResidual
	BundleNTokenResidualTransfer
	BundleVaultEntryTransfer
	BundleVaultFees
	BundleVaultLendAtZero
	BundleVaultRedeem
	BundleVaultEntry
	BundleVaultExit
	BundleVaultRoll
	BundleVaultSettle
	BundleVaultDeleverageFCash
	BundleVaultDeleveragePrimeDebt
	BundleVaultLiquidateCash
	BundleVaultLiquidateExcessCash
)

var bundleKindNames = map[BundleKind]string{
	BundleDeposit:                        "Deposit",
	BundleDepositAndTransfer:             "Deposit and Transfer",
	BundleWithdraw:                       "Withdraw",
	BundleTransferAsset:                  "Transfer Asset",
	BundleTransferIncentive:              "Transfer Incentive",
	BundleTransferSecondaryIncentive:     "Transfer Secondary Incentive",
	BundleMintNToken:                     "Mint nToken",
	BundleRedeemNToken:                   "Redeem nToken",
	BundleBuyFCash:                       "Buy fCash",
	BundleSellFCash:                      "Sell fCash",
	BundleBorrowFCash:                    "Borrow fCash",
	BundleRepayFCash:                     "Repay fCash",
	BundleBuyFCashVault:                  "Buy fCash Vault",
	BundleSellFCashVault:                 "Sell fCash Vault",
	BundleBorrowPrimeCash:                "Borrow Prime Cash",
	BundleRepayPrimeCash:                 "Repay Prime Cash",
	BundleBorrowPrimeCashVault:           "Borrow Prime Cash Vault",
	BundleRepayPrimeCashVault:            "Repay Prime Cash Vault",
	BundleSettleFCash:                    "Settle fCash",
	BundleSettleFCashNToken:              "Settle fCash nToken",
	BundleSettleFCashVault:               "Settle fCash Vault",
	BundleSettleCash:                     "Settle Cash",
	BundleSettleCashNToken:               "Settle Cash nToken",
	BundleNTokenPurchasePositiveResidual: "nToken Purchase Positive Residual",
	BundleNTokenPurchaseNegativeResidual: "nToken Purchase Negative Residual",
	BundleNTokenResidualTransfer:         "nToken Residual Transfer",
	BundleVaultEntryTransfer:             "Vault Entry Transfer",
	BundleVaultFees:                      "Vault Fees",
	BundleVaultLendAtZero:                "Vault Lend at Zero",
	BundleVaultRedeem:                    "Vault Redeem",
	BundleVaultEntry:                     "Vault Entry",
	BundleVaultExit:                      "Vault Exit",
	BundleVaultRoll:                      "Vault Roll",
	BundleVaultSettle:                    "Vault Settle",
	BundleVaultDeleverageFCash:           "Vault Deleverage fCash",
	BundleVaultDeleveragePrimeDebt:       "Vault Deleverage Prime Debt",
	BundleVaultLiquidateCash:             "Vault Liquidate Cash",
	BundleVaultLiquidateExcessCash:       "Vault Liquidate Excess Cash",
}

func (k BundleKind) String() string {
	if name, ok := bundleKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("BundleKind(%d)", int(k))
}

// Bundle is a named, contiguous span of transfers within one transaction.
// Immutable once created by the bundler.
type Bundle struct {
	Kind          BundleKind
	TxHash        common.Hash
	BlockNumber   uint64
	Timestamp     uint64
	StartLogIndex uint32
	EndLogIndex   uint32
	Transfers     []*Transfer
}

// ID is the stable identifier used in sinks and for line-item attribution.
func (b *Bundle) ID() string {
	return fmt.Sprintf("%s:%06d:%06d:%s", b.TxHash.Hex(), b.StartLogIndex, b.EndLogIndex, b.Kind)
}
