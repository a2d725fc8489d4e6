// Package ledger maintains per (account, asset) cost-basis accounting. It
// consumes line items in order and keeps a running accumulated balance,
// realized-cost accumulator, moving-average adjusted cost basis, IL-and-fees
// accumulator and decomposed interest accrual, all as append-only balance
// snapshots.
package ledger

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// Valuation supplies oracle-backed values for PnL marking. The boolean
// result reports availability for the current block; false skips the
// dependent update.
type Valuation interface {
	ConvertToUnderlying(amount *big.Int, token domain.Token, at uint64) (*big.Int, bool)
	LatestInterestRate(token domain.Token) (*big.Int, bool)
}

type Ledger struct {
	valuation Valuation
	logger    *zap.Logger
}

func New(valuation Valuation, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{valuation: valuation, logger: logger}
}

// Apply folds one line item into the key's snapshot chain inside the arena
// and returns the snapshot it landed on. The item's IsTransient flag is set
// here as a side effect, once the snapshot's balance delta is known.
//
// The average-cost recurrence: positive token amounts add their realized
// cost (stored negated on the item) to the cost accumulator; negative
// amounts release cost at the current adjusted basis. When the accumulated
// balance falls inside the dust band the position is considered closed and
// every per-position accumulator resets, folding the residual realized cost
// into total PnL.
func (l *Ledger) Apply(arena *Arena, item *domain.LineItem, token domain.Token) *domain.BalanceSnapshot {
	key := domain.BalanceKey{Account: item.Account, Token: item.Token}
	snapshot := arena.SnapshotFor(key, item.TxHash, item.BlockNumber, item.Timestamp)

	snapshot.CurrentBalance = new(big.Int).Add(snapshot.CurrentBalance, item.TokenAmount)
	snapshot.AccumulatedBalance = new(big.Int).Add(snapshot.AccumulatedBalance, item.TokenAmount)

	setAdjustedCostBasis := true
	switch {
	case item.TokenAmount.Sign() == 0:
		// Correction entries only adjust realized/spot values downstream.

	case item.TokenAmount.Sign() > 0:
		// Realized is negative for position-increasing entries, so this adds
		// the entry cost.
		snapshot.AccumulatedCostRealized = new(big.Int).Sub(snapshot.AccumulatedCostRealized, item.UnderlyingAmountRealized)

	default:
		// A negative amount arriving before any positive one (minting
		// nTokens with fCash does this) has no basis yet; seed it from the
		// entry itself.
		if snapshot.AdjustedCostBasis.Sign() == 0 && snapshot.AccumulatedBalance.Sign() != 0 {
			cost := new(big.Int).Neg(item.UnderlyingAmountRealized)
			snapshot.AdjustedCostBasis = quo(new(big.Int).Mul(cost, domain.InternalTokenPrecision), snapshot.AccumulatedBalance)
			setAdjustedCostBasis = false
		}

		released := quo(
			new(big.Int).Mul(snapshot.AdjustedCostBasis, new(big.Int).Neg(item.TokenAmount)),
			domain.InternalTokenPrecision,
		)
		snapshot.AccumulatedCostRealized = new(big.Int).Sub(snapshot.AccumulatedCostRealized, released)
	}

	// Entries whose net balance effect is negligible exist only to keep the
	// internal accounting consistent; mark them so reporting can filter.
	delta := new(big.Int).Sub(snapshot.CurrentBalance, snapshot.PreviousBalance)
	item.IsTransient = delta.CmpAbs(domain.TransientDust) <= 0

	if snapshot.AccumulatedBalance.CmpAbs(domain.Dust) <= 0 {
		l.closePosition(snapshot)
		return snapshot
	}

	if item.TokenAmount.Sign() >= 0 && item.ImpliedFixedRate != nil {
		l.blendImpliedRate(snapshot, item)
	}

	if snapshot.AccumulatedCostRealized.CmpAbs(domain.Dust) <= 0 {
		snapshot.AdjustedCostBasis = big.NewInt(0)
	} else if setAdjustedCostBasis {
		snapshot.AdjustedCostBasis = quo(
			new(big.Int).Mul(snapshot.AccumulatedCostRealized, domain.InternalTokenPrecision),
			snapshot.AccumulatedBalance,
		)
	}

	l.updateILAndFees(snapshot, item)
	l.updatePnL(snapshot, token, item)

	return snapshot
}

// Refresh marks an untouched position to the current oracle value. Used
// when a reward claim needs a fresh snapshot for an account whose balance
// did not move in the event.
func (l *Ledger) Refresh(s *domain.BalanceSnapshot, token domain.Token) {
	l.updatePnL(s, token, nil)
}

// closePosition resets the per-position accumulators when the accumulated
// balance lands inside the dust band. The residual realized cost becomes the
// position's final total PnL.
func (l *Ledger) closePosition(s *domain.BalanceSnapshot) {
	s.AccumulatedBalance = big.NewInt(0)
	s.AdjustedCostBasis = big.NewInt(0)
	s.CurrentPnL = big.NewInt(0)
	s.TotalInterestAccrual = big.NewInt(0)
	s.TotalILAndFees = big.NewInt(0)
	s.TotalPnL = new(big.Int).Neg(s.AccumulatedCostRealized)
	s.ImpliedFixedRate = nil
}

// blendImpliedRate folds the entry's implied rate into the position-weighted
// average entry rate.
func (l *Ledger) blendImpliedRate(s *domain.BalanceSnapshot, item *domain.LineItem) {
	prev := big.NewInt(0)
	if s.ImpliedFixedRate != nil {
		prev = s.ImpliedFixedRate
	}
	weighted := new(big.Int).Mul(s.AccumulatedBalance, prev)
	weighted.Add(weighted, new(big.Int).Mul(item.TokenAmount, new(big.Int).Sub(item.ImpliedFixedRate, prev)))
	s.ImpliedFixedRate = quo(weighted, s.AccumulatedBalance)
}

func quo(x, y *big.Int) *big.Int {
	if y.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(x, y)
}
