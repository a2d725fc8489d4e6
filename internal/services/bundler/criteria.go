package bundler

import "github.com/vadiminshakov/pnltrace/internal/domain"

// Predicate helpers. Each inspects a single transfer; criteria compose them
// over the match window.

func isKind(t *domain.Transfer, k domain.TransferKind) bool { return t.Kind == k }

func isType(t *domain.Transfer, tt domain.TokenType) bool { return t.TokenType == tt }

func cashLike(t *domain.Transfer) bool {
	return t.TokenType == domain.TokenTypePrimeCash || t.TokenType == domain.TokenTypeUnderlying
}

func mintOf(t *domain.Transfer, tt domain.TokenType) bool {
	return isKind(t, domain.TransferKindMint) && isType(t, tt)
}

func burnOf(t *domain.Transfer, tt domain.TokenType) bool {
	return isKind(t, domain.TransferKindBurn) && isType(t, tt)
}

func transferOf(t *domain.Transfer, tt domain.TokenType) bool {
	return isKind(t, domain.TransferKindTransfer) && isType(t, tt)
}

func feeLeg(t *domain.Transfer) bool {
	return isType(t, domain.TokenTypePrimeCash) && t.ToSystem == domain.SystemAccountFeeReserve
}

func sameAccountMint(a, b *domain.Transfer) bool { return a.To == b.To }

func sameAccountBurn(a, b *domain.Transfer) bool { return a.From == b.From }

// Criteria is the ordered bundle criteria table. Table order is the
// tie-break: when two entries could match the same window, the earlier one
// wins. Entries encode the protocol's operation shapes and are treated as
// versioned configuration; every change must be covered by a fixture test.
var Criteria = []Criterion{
	{
		Kind: domain.BundleTransferIncentive, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypeIncentive) && w[0].FromSystem == domain.SystemAccountNotional
		},
	},
	{
		Kind: domain.BundleTransferSecondaryIncentive, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypeIncentive) && w[0].FromSystem == domain.SystemAccountRewarder
		},
	},
	{
		// A deposit immediately followed by a transfer of the minted cash is
		// one operation; the match rewrites the preceding Deposit bundle.
		Kind: domain.BundleDepositAndTransfer, WindowSize: 1, LookBehind: 1, BundleSize: 2, Rewrite: true,
		Match: func(w []*domain.Transfer) bool {
			return mintOf(w[0], domain.TokenTypePrimeCash) &&
				transferOf(w[1], domain.TokenTypePrimeCash) &&
				w[1].ToSystem == domain.SystemAccountNone &&
				w[0].To == w[1].From
		},
	},
	{
		Kind: domain.BundleDeposit, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return mintOf(w[0], domain.TokenTypePrimeCash) && w[0].ToSystem == domain.SystemAccountNone
		},
	},
	{
		Kind: domain.BundleWithdraw, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return burnOf(w[0], domain.TokenTypePrimeCash) && w[0].FromSystem == domain.SystemAccountNone
		},
	},
	{
		Kind: domain.BundleSettleCashNToken, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountSettlementReserve &&
				w[0].ToSystem == domain.SystemAccountNToken
		},
	},
	{
		Kind: domain.BundleSettleCash, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountSettlementReserve
		},
	},
	{
		Kind: domain.BundleSettleFCashNToken, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return burnOf(w[0], domain.TokenTypeFCash) && w[0].Matured() &&
				w[0].FromSystem == domain.SystemAccountNToken
		},
	},
	{
		Kind: domain.BundleSettleFCashVault, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return burnOf(w[0], domain.TokenTypeFCash) && w[0].Matured() &&
				w[0].FromSystem == domain.SystemAccountVault
		},
	},
	{
		Kind: domain.BundleSettleFCash, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return burnOf(w[0], domain.TokenTypeFCash) && w[0].Matured()
		},
	},
	{
		Kind: domain.BundleVaultEntryTransfer, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return isKind(w[0], domain.TransferKindTransfer) && cashLike(w[0]) &&
				w[0].FromSystem == domain.SystemAccountNone &&
				w[0].ToSystem == domain.SystemAccountVault
		},
	},
	{
		Kind: domain.BundleVaultLendAtZero, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountVault &&
				w[0].ToSystem == domain.SystemAccountSettlementReserve
		},
	},
	{
		Kind: domain.BundleVaultRedeem, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return isKind(w[0], domain.TransferKindTransfer) && cashLike(w[0]) &&
				w[0].FromSystem == domain.SystemAccountVault &&
				w[0].ToSystem == domain.SystemAccountNone
		},
	},
	{
		// Residual fCash moving between the nToken and an account outside a
		// matched trade.
		Kind: domain.BundleNTokenResidualTransfer, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypeFCash) &&
				(w[0].FromSystem == domain.SystemAccountNToken || w[0].ToSystem == domain.SystemAccountNToken)
		},
	},
	{
		Kind: domain.BundleVaultFees, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountVault &&
				w[0].ToSystem == domain.SystemAccountFeeReserve &&
				transferOf(w[1], domain.TokenTypePrimeCash) &&
				w[1].FromSystem == domain.SystemAccountVault &&
				w[1].ToSystem == domain.SystemAccountNToken
		},
	},
	{
		Kind: domain.BundleBorrowPrimeCashVault, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return mintOf(w[0], domain.TokenTypePrimeDebt) && w[0].ToSystem == domain.SystemAccountVault &&
				mintOf(w[1], domain.TokenTypePrimeCash) && w[1].ToSystem == domain.SystemAccountVault &&
				sameAccountMint(w[0], w[1])
		},
	},
	{
		Kind: domain.BundleRepayPrimeCashVault, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return burnOf(w[0], domain.TokenTypePrimeDebt) && w[0].FromSystem == domain.SystemAccountVault &&
				burnOf(w[1], domain.TokenTypePrimeCash) && w[1].FromSystem == domain.SystemAccountVault &&
				sameAccountBurn(w[0], w[1])
		},
	},
	{
		Kind: domain.BundleBorrowPrimeCash, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return mintOf(w[0], domain.TokenTypePrimeDebt) &&
				mintOf(w[1], domain.TokenTypePrimeCash) &&
				sameAccountMint(w[0], w[1])
		},
	},
	{
		Kind: domain.BundleRepayPrimeCash, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return burnOf(w[0], domain.TokenTypePrimeDebt) &&
				burnOf(w[1], domain.TokenTypePrimeCash) &&
				sameAccountBurn(w[0], w[1])
		},
	},
	{
		Kind: domain.BundleMintNToken, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].ToSystem == domain.SystemAccountNToken &&
				mintOf(w[1], domain.TokenTypeNToken) &&
				w[1].To == w[0].From
		},
	},
	{
		Kind: domain.BundleRedeemNToken, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountNToken &&
				burnOf(w[1], domain.TokenTypeNToken) &&
				w[1].From == w[0].To
		},
	},
	{
		Kind: domain.BundleNTokenPurchasePositiveResidual, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountNone &&
				w[0].ToSystem == domain.SystemAccountNToken &&
				transferOf(w[1], domain.TokenTypeFCash) &&
				w[1].FromSystem == domain.SystemAccountNToken &&
				w[1].To == w[0].From
		},
	},
	{
		Kind: domain.BundleNTokenPurchaseNegativeResidual, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountNToken &&
				w[0].ToSystem == domain.SystemAccountNone &&
				transferOf(w[1], domain.TokenTypeFCash) &&
				w[1].ToSystem == domain.SystemAccountNToken &&
				w[1].From == w[0].To
		},
	},
	{
		// A matched pair of fCash mints: the debt side on the account, the
		// positive side into the market. The preceding Sell fCash bundle
		// carries the traded value.
		Kind: domain.BundleBorrowFCash, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return mintOf(w[0], domain.TokenTypeFCash) && w[0].ToSystem == domain.SystemAccountNone &&
				mintOf(w[1], domain.TokenTypeFCash) && w[1].ToSystem == domain.SystemAccountNToken &&
				w[0].Maturity == w[1].Maturity
		},
	},
	{
		Kind: domain.BundleRepayFCash, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return burnOf(w[0], domain.TokenTypeFCash) && w[0].FromSystem == domain.SystemAccountNone &&
				burnOf(w[1], domain.TokenTypeFCash) && w[1].FromSystem == domain.SystemAccountNToken &&
				w[0].Maturity == w[1].Maturity
		},
	},
	{
		// A settle looks like an exit followed by a re-entry at the prime
		// maturity; the rewrite absorbs the Vault Exit bundled just before.
		Kind: domain.BundleVaultSettle, WindowSize: 2, LookBehind: 2, BundleSize: 4, Rewrite: true,
		Match: func(w []*domain.Transfer) bool {
			return vaultRollShape(w) &&
				w[2].Maturity == domain.PrimeCashVaultMaturity &&
				w[0].Matured()
		},
	},
	{
		Kind: domain.BundleVaultRoll, WindowSize: 2, LookBehind: 2, BundleSize: 4, Rewrite: true,
		Match: func(w []*domain.Transfer) bool {
			return vaultRollShape(w) && w[2].Maturity != w[0].Maturity
		},
	},
	{
		Kind: domain.BundleVaultDeleverageFCash, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return vaultDeleverageShape(w) && w[1].Maturity != domain.PrimeCashVaultMaturity
		},
	},
	{
		Kind: domain.BundleVaultDeleveragePrimeDebt, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return vaultDeleverageShape(w) && w[1].Maturity == domain.PrimeCashVaultMaturity
		},
	},
	{
		Kind: domain.BundleVaultEntry, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return mintOf(w[0], domain.TokenTypeVaultDebt) &&
				mintOf(w[1], domain.TokenTypeVaultShare) &&
				sameAccountMint(w[0], w[1])
		},
	},
	{
		Kind: domain.BundleVaultExit, WindowSize: 2, CanStart: true, BundleSize: 2,
		Match: func(w []*domain.Transfer) bool {
			return burnOf(w[0], domain.TokenTypeVaultDebt) &&
				burnOf(w[1], domain.TokenTypeVaultShare) &&
				sameAccountBurn(w[0], w[1])
		},
	},
	{
		Kind: domain.BundleBuyFCashVault, WindowSize: 3, CanStart: true, BundleSize: 3,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountVault &&
				w[0].ToSystem == domain.SystemAccountNToken &&
				feeLeg(w[1]) &&
				isType(w[2], domain.TokenTypeFCash)
		},
	},
	{
		Kind: domain.BundleSellFCashVault, WindowSize: 3, CanStart: true, BundleSize: 3,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypePrimeCash) &&
				w[0].FromSystem == domain.SystemAccountNToken &&
				w[0].ToSystem == domain.SystemAccountVault &&
				feeLeg(w[1]) &&
				isType(w[2], domain.TokenTypeFCash)
		},
	},
	{
		Kind: domain.BundleBuyFCash, WindowSize: 3, CanStart: true, BundleSize: 3,
		Match: func(w []*domain.Transfer) bool {
			return isType(w[0], domain.TokenTypePrimeCash) &&
				w[0].ToSystem != domain.SystemAccountVault &&
				feeLeg(w[1]) &&
				isType(w[2], domain.TokenTypeFCash) &&
				(isKind(w[2], domain.TransferKindMint) ||
					(isKind(w[2], domain.TransferKindTransfer) && w[2].FromSystem == domain.SystemAccountNToken))
		},
	},
	{
		Kind: domain.BundleSellFCash, WindowSize: 3, CanStart: true, BundleSize: 3,
		Match: func(w []*domain.Transfer) bool {
			return isType(w[0], domain.TokenTypePrimeCash) &&
				w[0].ToSystem != domain.SystemAccountVault &&
				feeLeg(w[1]) &&
				isType(w[2], domain.TokenTypeFCash) &&
				(isKind(w[2], domain.TransferKindBurn) ||
					(isKind(w[2], domain.TransferKindTransfer) && w[2].ToSystem == domain.SystemAccountNToken))
		},
	},
	{
		Kind: domain.BundleVaultLiquidateCash, WindowSize: 4, CanStart: true, BundleSize: 4,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypeVaultCash) &&
				w[0].FromSystem == domain.SystemAccountNone &&
				w[0].ToSystem == domain.SystemAccountNone &&
				burnOf(w[1], domain.TokenTypeFCash) && w[1].From == w[0].To &&
				burnOf(w[2], domain.TokenTypeVaultDebt) && w[2].From == w[0].From &&
				burnOf(w[3], domain.TokenTypeVaultCash) && w[3].From == w[0].From
		},
	},
	{
		Kind: domain.BundleVaultLiquidateExcessCash, WindowSize: 6, CanStart: true, BundleSize: 6,
		Match: func(w []*domain.Transfer) bool {
			return transferOf(w[0], domain.TokenTypeVaultCash) &&
				w[0].FromSystem == domain.SystemAccountVault &&
				burnOf(w[1], domain.TokenTypeVaultCash) && w[1].From == w[0].To &&
				burnOf(w[2], domain.TokenTypeVaultCash) &&
				mintOf(w[3], domain.TokenTypePrimeCash) && w[3].To == w[0].To &&
				transferOf(w[4], domain.TokenTypePrimeCash) &&
				w[4].ToSystem == domain.SystemAccountVault &&
				mintOf(w[5], domain.TokenTypeVaultCash)
		},
	},
	{
		// Catch-all: a plain wallet-to-wallet transfer of a position. Vault
		// cash never moves between ordinary wallets outside a liquidation,
		// so it is excluded here to keep the liquidation windows intact.
		Kind: domain.BundleTransferAsset, WindowSize: 1, CanStart: true, BundleSize: 1,
		Match: func(w []*domain.Transfer) bool {
			return isKind(w[0], domain.TransferKindTransfer) &&
				!isType(w[0], domain.TokenTypeVaultCash) &&
				w[0].FromSystem == domain.SystemAccountNone &&
				w[0].ToSystem == domain.SystemAccountNone
		},
	},
}

func vaultRollShape(w []*domain.Transfer) bool {
	if len(w) != 4 {
		return false
	}
	return burnOf(w[0], domain.TokenTypeVaultDebt) &&
		burnOf(w[1], domain.TokenTypeVaultShare) &&
		mintOf(w[2], domain.TokenTypeVaultDebt) &&
		mintOf(w[3], domain.TokenTypeVaultShare) &&
		w[0].From == w[2].To &&
		w[1].From == w[3].To
}

func vaultDeleverageShape(w []*domain.Transfer) bool {
	return mintOf(w[0], domain.TokenTypeVaultCash) &&
		transferOf(w[1], domain.TokenTypeVaultShare) &&
		w[1].FromSystem == domain.SystemAccountNone &&
		w[1].ToSystem == domain.SystemAccountNone &&
		w[1].From == w[0].To
}
