package lineitem

import (
	"math/big"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// isBuyTrade reports the direction of an fCash trade: cash flowing into the
// liquidity pool means positive fCash was bought.
func isBuyTrade(trade []*domain.Transfer) bool {
	return trade[0].ToSystem == domain.SystemAccountNToken
}

// tradeNetRealized is the cash value of an fCash trade net of the fee leg.
func tradeNetRealized(trade []*domain.Transfer) *big.Int {
	if trade[0].ValueInUnderlying == nil || trade[1].ValueInUnderlying == nil {
		return nil
	}
	return new(big.Int).Sub(trade[0].ValueInUnderlying, trade[1].ValueInUnderlying)
}

// splitRatio returns the rate-precision fraction of the traded fCash that
// the given transfer represents, or nil when the transfer covers the whole
// trade. Used when a trade's fCash is split between a positive and a
// negative position.
func splitRatio(trade []*domain.Transfer, fCashTransfer *domain.Transfer) *big.Int {
	traded := trade[2].Value
	moved := new(big.Int).Abs(fCashTransfer.Value)
	if traded.Sign() == 0 || traded.CmpAbs(moved) == 0 {
		return nil
	}
	return new(big.Int).Abs(quo(new(big.Int).Mul(fCashTransfer.Value, domain.RatePrecision), traded))
}

// fCashTrade synthesizes the entries of a positive fCash purchase or sale.
// The fee folds into both legs: the cash leg realizes the net amount and the
// fCash leg carries the fee explicitly. Debt-side fCash produced by the same
// trade is handled by fCashDebt.
func (s *Synthesizer) fCashTrade(items []*domain.LineItem, bundle *domain.Bundle, trade []*domain.Transfer, fCashTransfer *domain.Transfer) []*domain.LineItem {
	net := tradeNetRealized(trade)
	if net == nil || fCashTransfer.ValueInUnderlying == nil {
		return items
	}

	isBuy := isBuyTrade(trade)
	ratio := splitRatio(trade, fCashTransfer)

	cashDir := domain.TransferKindMint
	fCashDir := domain.TransferKindBurn
	if isBuy {
		cashDir = domain.TransferKindBurn
		fCashDir = domain.TransferKindMint
	}

	items = s.build(items, bundle, trade[0], cashDir, net, net, ratio, nil, nil)
	// The fee is excluded from the implied-rate base so the rate reflects
	// the market price rather than the all-in price.
	items = s.build(items, bundle, fCashTransfer, fCashDir, net, fCashTransfer.ValueInUnderlying,
		ratio, trade[0].ValueInUnderlying, trade[1].ValueInUnderlying)
	return items
}

// nTokenResidual synthesizes the entry for residual fCash moving between the
// nToken and an account. The realized value comes from the trade that the
// residual unwinds; without one the transfer is recorded at its oracle
// value.
func (s *Synthesizer) nTokenResidual(items []*domain.LineItem, bundle *domain.Bundle, transfer *domain.Transfer, prior []*domain.Bundle) []*domain.LineItem {
	if transfer.ValueInUnderlying == nil {
		return items
	}

	positiveResidual := transfer.FromSystem == domain.SystemAccountNToken
	dir := domain.TransferKindBurn
	tradeKind := domain.BundleBuyFCash
	if positiveResidual {
		dir = domain.TransferKindMint
		tradeKind = domain.BundleSellFCash
	}

	trade := findPrecedingBundle(tradeKind, prior)
	if trade == nil {
		return s.buildSimple(items, bundle, transfer, dir, transfer.ValueInUnderlying, transfer.ValueInUnderlying)
	}

	realized := tradeNetRealized(trade)
	if realized == nil {
		return items
	}
	spot := transfer.ValueInUnderlying
	items = s.buildSimple(items, bundle, transfer, dir, realized, spot)

	if redeem := findPrecedingBundle(domain.BundleRedeemNToken, prior); redeem != nil {
		adjRealized := realized
		adjSpot := spot
		if !positiveResidual {
			adjRealized = new(big.Int).Neg(realized)
			adjSpot = new(big.Int).Neg(spot)
		}
		before := len(items)
		items = s.buildSimple(items, bundle, redeem[1], domain.TransferKindBurn, adjRealized, adjSpot)
		if len(items) > before {
			// Only the realized and spot amounts of this correction entry
			// feed the ledger; the token amount and prices are not accurate
			// for the redeem transfer and are cleared.
			adj := items[len(items)-1]
			adj.TokenAmount = big.NewInt(0)
			adj.RealizedPrice = big.NewInt(0)
			adj.SpotPrice = big.NewInt(0)
		}
	}
	return items
}

// fCashDebt synthesizes the paired debt entries of a Borrow fCash or Repay
// fCash bundle. The realized value is the preceding trade's net cash scaled
// to the debt portion of the traded fCash.
func (s *Synthesizer) fCashDebt(items []*domain.LineItem, bundle *domain.Bundle, t []*domain.Transfer, prior []*domain.Bundle) []*domain.LineItem {
	tradeKind := domain.BundleBuyFCash
	if bundle.Kind == domain.BundleBorrowFCash {
		tradeKind = domain.BundleSellFCash
	}
	trade := findPrecedingBundle(tradeKind, prior)
	if trade == nil {
		return items
	}

	net := tradeNetRealized(trade)
	if net == nil || trade[2].Value.Sign() == 0 ||
		t[0].ValueInUnderlying == nil || t[1].ValueInUnderlying == nil {
		return items
	}
	realized := quo(new(big.Int).Mul(net, t[0].Value), trade[2].Value)

	items = s.buildSimple(items, bundle, t[0], t[0].Kind, realized, t[0].ValueInUnderlying)
	items = s.buildSimple(items, bundle, t[1], t[1].Kind, realized, t[1].ValueInUnderlying)
	return items
}
