package lineitem

import (
	"math/big"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// vaultDebt synthesizes the entry for a vault debt transfer. Variable-rate
// and matured debt realizes at its priced value; fixed-rate debt realizes at
// the net cash of the vault-side fCash trade that created or retired it,
// located among the transaction's earlier bundles.
func (s *Synthesizer) vaultDebt(items []*domain.LineItem, bundle *domain.Bundle, debt *domain.Transfer, prior []*domain.Bundle) []*domain.LineItem {
	var realized, impliedBase *big.Int

	switch {
	case debt.Maturity == domain.PrimeCashVaultMaturity || debt.Matured():
		// Matured debt is priced at its settled value including variable
		// interest accrued past maturity.
		realized = debt.ValueInUnderlying

	case debt.Kind == domain.TransferKindMint:
		borrow := findPrecedingBundle(domain.BundleSellFCashVault, prior)
		if borrow != nil {
			impliedBase = borrow[0].ValueInUnderlying
			realized = tradeNetRealized(borrow)
			if fees := findPrecedingBundle(domain.BundleVaultFees, prior); realized != nil && fees != nil &&
				fees[0].ValueInUnderlying != nil && fees[1].ValueInUnderlying != nil {
				realized = new(big.Int).Sub(realized, fees[0].ValueInUnderlying)
				realized = new(big.Int).Sub(realized, fees[1].ValueInUnderlying)
			}
		}

	case debt.Kind == domain.TransferKindBurn:
		if lendAtZero := findPrecedingBundle(domain.BundleVaultLendAtZero, prior); lendAtZero != nil && lendAtZero[0].ValueInUnderlying != nil {
			realized = lendAtZero[0].ValueInUnderlying
			impliedBase = lendAtZero[0].ValueInUnderlying
		} else if lend := findPrecedingBundle(domain.BundleBuyFCashVault, prior); lend != nil {
			impliedBase = lend[0].ValueInUnderlying
			realized = tradeNetRealized(lend)
		}
	}

	if realized == nil || debt.ValueInUnderlying == nil {
		return items
	}
	return s.build(items, bundle, debt, debt.Kind, realized, debt.ValueInUnderlying, nil, impliedBase, nil)
}

// vaultShare synthesizes the entry for a vault share transfer at the given
// realized value. When the share has no priced value the realized amount
// doubles as the spot amount, which pins the entry's IL-and-fees at zero.
func (s *Synthesizer) vaultShare(items []*domain.LineItem, bundle *domain.Bundle, share *domain.Transfer, realized *big.Int) []*domain.LineItem {
	spot := share.ValueInUnderlying
	if spot == nil {
		spot = realized
	}
	return s.buildSimple(items, bundle, share, share.Kind, realized, spot)
}

// vaultExit synthesizes the debt and share entries of a Vault Exit bundle.
// The share's realized value comes from the redeem that followed the exit,
// or from the deleverage that forced it.
func (s *Synthesizer) vaultExit(items []*domain.LineItem, bundle *domain.Bundle, t []*domain.Transfer, prior []*domain.Bundle) []*domain.LineItem {
	items = s.vaultDebt(items, bundle, t[0], prior)

	if redeem := findPrecedingBundle(domain.BundleVaultRedeem, prior); redeem != nil && redeem[0].ValueInUnderlying != nil {
		return s.vaultShare(items, bundle, t[1], redeem[0].ValueInUnderlying)
	}

	if t[1].Maturity == domain.PrimeCashVaultMaturity {
		if del := findPrecedingBundle(domain.BundleVaultDeleveragePrimeDebt, prior); del != nil && del[0].ValueInUnderlying != nil {
			return s.vaultShare(items, bundle, t[1], del[0].ValueInUnderlying)
		}
		return items
	}

	if del := findPrecedingBundle(domain.BundleVaultDeleverageFCash, prior); del != nil && del[0].ValueInUnderlying != nil {
		// The vault cash minted to the liquidated account is recorded along
		// with the share exit it paid for.
		items = s.buildSimple(items, bundle, del[0], del[0].Kind, del[0].ValueInUnderlying, del[0].ValueInUnderlying)
		items = s.vaultShare(items, bundle, t[1], del[0].ValueInUnderlying)
	}
	return items
}

// vaultRoll synthesizes the four entries of a Vault Roll or Vault Settle
// bundle: old shares burned at oracle value, new shares minted at the old
// value plus any fresh entry transfer, and both debt legs.
func (s *Synthesizer) vaultRoll(items []*domain.LineItem, bundle *domain.Bundle, t []*domain.Transfer, prior []*domain.Bundle) []*domain.LineItem {
	oldShareValue := t[1].ValueInUnderlying
	if oldShareValue == nil {
		return items
	}

	items = s.vaultShare(items, bundle, t[1], oldShareValue)

	newShareValue := oldShareValue
	if entry := findPrecedingBundle(domain.BundleVaultEntryTransfer, prior); entry != nil && entry[0].ValueInUnderlying != nil {
		newShareValue = new(big.Int).Add(oldShareValue, entry[0].ValueInUnderlying)
	}
	items = s.vaultShare(items, bundle, t[3], newShareValue)

	items = s.vaultDebt(items, bundle, t[0], prior)
	items = s.vaultDebt(items, bundle, t[2], prior)
	return items
}
