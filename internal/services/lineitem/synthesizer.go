// Package lineitem turns classified bundles into signed accounting entries.
// Each bundle kind has its own rule for which transfers produce entries and
// how their realized and spot underlying values are derived, including
// cross-references to earlier bundles of the same transaction.
package lineitem

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// TokenResolver resolves asset metadata.
type TokenResolver interface {
	Resolve(id domain.TokenID) (domain.Token, error)
}

// Valuation supplies oracle-backed values. The boolean result reports
// availability; false skips the dependent entry instead of failing.
type Valuation interface {
	SettlementValue(token domain.Token, amount *big.Int) (*big.Int, bool)
}

type Synthesizer struct {
	tokens    TokenResolver
	valuation Valuation
	logger    *zap.Logger
}

func NewSynthesizer(tokens TokenResolver, valuation Valuation, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{tokens: tokens, valuation: valuation, logger: logger}
}

// Synthesize produces the line items of one bundle. prior holds the
// transaction's earlier bundles in creation order; several bundle kinds
// derive their realized values from a preceding trade or transfer context.
// Incentive claim bundles produce no entries here, they are handled by the
// incentive tracker. An empty result is valid: context-only bundles and
// unpriced transfers synthesize nothing.
func (s *Synthesizer) Synthesize(bundle *domain.Bundle, prior []*domain.Bundle) []*domain.LineItem {
	var items []*domain.LineItem
	t := bundle.Transfers

	switch bundle.Kind {
	case domain.BundleDeposit, domain.BundleWithdraw:
		if t[0].ValueInUnderlying != nil {
			items = s.buildSimple(items, bundle, t[0], t[0].Kind, t[0].ValueInUnderlying, t[0].ValueInUnderlying)
		}

	case domain.BundleDepositAndTransfer:
		// The depositor mints cash, immediately burns it to the receiver, and
		// the receiver mints the same balance.
		if t[0].ValueInUnderlying != nil {
			items = s.buildSimple(items, bundle, t[0], domain.TransferKindMint, t[0].ValueInUnderlying, t[0].ValueInUnderlying)
		}
		if t[1].ValueInUnderlying != nil {
			items = s.buildSimple(items, bundle, t[1], domain.TransferKindBurn, t[1].ValueInUnderlying, t[1].ValueInUnderlying)
			items = s.buildSimple(items, bundle, t[1], domain.TransferKindMint, t[1].ValueInUnderlying, t[1].ValueInUnderlying)
		}

	case domain.BundleTransferAsset:
		if t[0].ValueInUnderlying != nil {
			items = s.buildSimple(items, bundle, t[0], domain.TransferKindMint, t[0].ValueInUnderlying, t[0].ValueInUnderlying)
			items = s.buildSimple(items, bundle, t[0], domain.TransferKindBurn, t[0].ValueInUnderlying, t[0].ValueInUnderlying)
		}

	case domain.BundleNTokenPurchasePositiveResidual, domain.BundleNTokenPurchaseNegativeResidual:
		// t0 is the cash paid at spot, t1 the residual fCash at its oracle
		// value. Both sides of both transfers are recorded.
		realized := t[0].ValueInUnderlying
		spot := t[1].ValueInUnderlying
		if realized != nil && spot != nil {
			items = s.buildSimple(items, bundle, t[0], domain.TransferKindBurn, realized, realized)
			items = s.buildSimple(items, bundle, t[0], domain.TransferKindMint, realized, realized)
			items = s.buildSimple(items, bundle, t[1], domain.TransferKindMint, realized, spot)
			items = s.buildSimple(items, bundle, t[1], domain.TransferKindBurn, realized, spot)
		}

	case domain.BundleMintNToken, domain.BundleRedeemNToken:
		realized := t[0].ValueInUnderlying
		spot := t[1].ValueInUnderlying
		if realized != nil && spot != nil {
			cashDir := domain.TransferKindBurn
			if t[1].Kind == domain.TransferKindBurn {
				cashDir = domain.TransferKindMint
			}
			items = s.buildSimple(items, bundle, t[0], cashDir, realized, realized)
			items = s.buildSimple(items, bundle, t[1], t[1].Kind, realized, spot)
		}

	case domain.BundleSettleFCash, domain.BundleSettleFCashVault, domain.BundleSettleFCashNToken:
		items = s.settledFCash(items, bundle, t[0])

	case domain.BundleSettleCash, domain.BundleSettleCashNToken:
		// The settlement reserve always transfers to the settled account.
		if t[0].ValueInUnderlying != nil {
			items = s.buildSimple(items, bundle, t[0], domain.TransferKindMint, t[0].ValueInUnderlying, t[0].ValueInUnderlying)
		}

	case domain.BundleBorrowPrimeCash, domain.BundleRepayPrimeCash,
		domain.BundleBorrowPrimeCashVault, domain.BundleRepayPrimeCashVault:
		if t[0].ValueInUnderlying != nil && t[1].ValueInUnderlying != nil {
			items = s.buildSimple(items, bundle, t[0], t[0].Kind, t[0].ValueInUnderlying, t[0].ValueInUnderlying)
			items = s.buildSimple(items, bundle, t[1], t[1].Kind, t[1].ValueInUnderlying, t[1].ValueInUnderlying)
		}

	case domain.BundleBuyFCash, domain.BundleSellFCash:
		items = s.fCashTrade(items, bundle, t, t[2])

	case domain.BundleNTokenResidualTransfer:
		items = s.nTokenResidual(items, bundle, t[0], prior)

	case domain.BundleBorrowFCash, domain.BundleRepayFCash:
		items = s.fCashDebt(items, bundle, t, prior)

	case domain.BundleVaultEntry:
		items = s.vaultDebt(items, bundle, t[0], prior)
		if entry := findPrecedingBundle(domain.BundleVaultEntryTransfer, prior); entry != nil && entry[0].ValueInUnderlying != nil {
			items = s.vaultShare(items, bundle, t[1], entry[0].ValueInUnderlying)
		}

	case domain.BundleVaultExit:
		items = s.vaultExit(items, bundle, t, prior)

	case domain.BundleVaultRoll, domain.BundleVaultSettle:
		items = s.vaultRoll(items, bundle, t, prior)

	case domain.BundleVaultDeleverageFCash, domain.BundleVaultDeleveragePrimeDebt:
		// Vault shares move to the liquidator; the realized value is the cash
		// paid for them.
		if t[0].ValueInUnderlying != nil && t[1].ValueInUnderlying != nil {
			items = s.buildSimple(items, bundle, t[1], domain.TransferKindMint, t[0].ValueInUnderlying, t[1].ValueInUnderlying)
		}

	case domain.BundleVaultLiquidateCash:
		items = s.vaultLiquidateCash(items, bundle, t)

	case domain.BundleVaultLiquidateExcessCash:
		items = s.vaultLiquidateExcessCash(items, bundle, t)

	case domain.BundleTransferIncentive, domain.BundleTransferSecondaryIncentive:
		// Handled by the incentive tracker.

	case domain.BundleVaultFees, domain.BundleVaultEntryTransfer, domain.BundleVaultRedeem,
		domain.BundleVaultLendAtZero, domain.BundleBuyFCashVault, domain.BundleSellFCashVault:
		// Context-only bundles: they carry valuation context for vault debt
		// and share entries but produce no entries of their own.
	}

	return items
}

func (s *Synthesizer) settledFCash(items []*domain.LineItem, bundle *domain.Bundle, transfer *domain.Transfer) []*domain.LineItem {
	token, err := s.tokens.Resolve(transfer.Token)
	if err != nil {
		s.logger.Warn("settled asset not in registry", zap.String("token", string(transfer.Token)))
		return items
	}

	realized, ok := s.valuation.SettlementValue(token, transfer.Value)
	spot := transfer.ValueInUnderlying
	if !ok || realized == nil || spot == nil {
		return items
	}
	return s.buildSimple(items, bundle, transfer, transfer.Kind, realized, spot)
}

func (s *Synthesizer) vaultLiquidateCash(items []*domain.LineItem, bundle *domain.Bundle, t []*domain.Transfer) []*domain.LineItem {
	for _, tr := range t {
		if tr.ValueInUnderlying == nil {
			return items
		}
	}

	// Liquidator receives the vault cash.
	items = s.buildSimple(items, bundle, t[0], domain.TransferKindMint, t[0].ValueInUnderlying, t[0].ValueInUnderlying)
	// Liquidator burns fCash, realized at the cash received.
	items = s.buildSimple(items, bundle, t[1], domain.TransferKindBurn, t[0].ValueInUnderlying, t[1].ValueInUnderlying)
	// Liquidated account burns vault debt, realized at the cash burned.
	items = s.buildSimple(items, bundle, t[2], t[2].Kind, t[3].ValueInUnderlying, t[2].ValueInUnderlying)
	// Liquidated account burns vault cash at par.
	items = s.buildSimple(items, bundle, t[3], t[3].Kind, t[3].ValueInUnderlying, t[3].ValueInUnderlying)
	return items
}

func (s *Synthesizer) vaultLiquidateExcessCash(items []*domain.LineItem, bundle *domain.Bundle, t []*domain.Transfer) []*domain.LineItem {
	// The liquidator's deposit-and-transfer legs (indexes 3 and 4) fund the
	// vault itself; vault PnL is not tracked so they produce nothing.
	for _, idx := range []int{0, 1, 2, 5} {
		tr := t[idx]
		if tr.ValueInUnderlying == nil {
			continue
		}
		dir := tr.Kind
		if idx == 0 {
			dir = domain.TransferKindMint
		}
		items = s.buildSimple(items, bundle, tr, dir, tr.ValueInUnderlying, tr.ValueInUnderlying)
	}
	return items
}
