package ledger

import (
	"math/big"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// updateILAndFees accrues the realized-vs-spot divergence of the entry.
// Positive divergence adds directly; on position reductions the running
// total is scaled down pro-rata with the balance, unless the pre-entry
// balance sits inside the transient band where the scaling would blow up.
func (l *Ledger) updateILAndFees(s *domain.BalanceSnapshot, item *domain.LineItem) {
	ilAndFees := new(big.Int).Sub(item.UnderlyingAmountRealized, item.UnderlyingAmountSpot)

	if ilAndFees.Sign() >= 0 {
		s.TotalILAndFees = new(big.Int).Add(s.TotalILAndFees, ilAndFees)
		return
	}

	balanceBefore := new(big.Int).Sub(s.AccumulatedBalance, item.TokenAmount)
	if balanceBefore.CmpAbs(domain.TransientDust) <= 0 || item.TokenAmount.Sign() == 0 {
		return
	}

	total := new(big.Int).Add(s.TotalILAndFees, ilAndFees)
	s.TotalILAndFees = new(big.Int).Add(total, quo(new(big.Int).Mul(total, item.TokenAmount), balanceBefore))
}

// updatePnL marks the position to the oracle value and decomposes the
// change into interest accrual by asset class: variable-rate assets
// attribute all current PnL to interest, yield tokens integrate the oracle
// interest accumulator, and fixed-rate assets accrue their annualized
// accumulator over elapsed time.
func (l *Ledger) updatePnL(s *domain.BalanceSnapshot, token domain.Token, item *domain.LineItem) {
	spotValue, ok := l.valuation.ConvertToUnderlying(s.AccumulatedBalance, token, s.Timestamp)
	if !ok || spotValue == nil {
		return
	}

	basisValue := quo(new(big.Int).Mul(s.AdjustedCostBasis, s.AccumulatedBalance), domain.InternalTokenPrecision)
	s.CurrentPnL = new(big.Int).Sub(spotValue, basisValue)
	s.TotalPnL = new(big.Int).Sub(spotValue, s.AccumulatedCostRealized)

	switch {
	case token.Type == domain.TokenTypeNToken || token.Type == domain.TokenTypeVaultShare:
		l.accrueYieldTokenInterest(s, token)

	case token.Type == domain.TokenTypeFCash ||
		(token.Type == domain.TokenTypeVaultDebt && token.Maturity != domain.PrimeCashVaultMaturity):
		l.accrueFixedRateInterest(s, item)

	case token.Type == domain.TokenTypePrimeCash || token.Type == domain.TokenTypePrimeDebt ||
		(token.Type == domain.TokenTypeVaultDebt && token.Maturity == domain.PrimeCashVaultMaturity):
		// Variable-rate assets have no trading component, the whole of the
		// current PnL is interest.
		s.TotalInterestAccrual = new(big.Int).Set(s.CurrentPnL)
	}
}

// accrueYieldTokenInterest integrates the oracle interest accumulator since
// the last snapshot, scaled by the balance movement.
func (l *Ledger) accrueYieldTokenInterest(s *domain.BalanceSnapshot, token domain.Token) {
	latest, ok := l.valuation.LatestInterestRate(token)
	if !ok || latest == nil {
		return
	}

	last := s.LastInterestAccumulator
	if last == nil {
		last = latest
	}
	accumulatorDelta := new(big.Int).Sub(latest, last)

	if s.CurrentBalance.Cmp(s.PreviousBalance) < 0 && s.PreviousBalance.Sign() != 0 {
		s.TotalInterestAccrual = new(big.Int).Add(s.TotalInterestAccrual,
			quo(new(big.Int).Mul(accumulatorDelta, s.CurrentBalance), s.PreviousBalance))
	} else {
		s.TotalInterestAccrual = new(big.Int).Add(s.TotalInterestAccrual,
			quo(new(big.Int).Mul(accumulatorDelta, s.PreviousBalance), domain.InternalTokenPrecision))
	}
	s.LastInterestAccumulator = new(big.Int).Set(latest)
}

// accrueFixedRateInterest applies the stored annualized accrual pro-rata
// over the time since the previous snapshot, then folds the entry's implied
// rate into the accumulator for the enlarged position.
func (l *Ledger) accrueFixedRateInterest(s *domain.BalanceSnapshot, item *domain.LineItem) {
	if s.LastInterestAccumulator == nil {
		s.LastInterestAccumulator = big.NewInt(0)
	}

	if s.Previous != nil && s.PreviousBalance.Sign() != 0 && s.Timestamp > s.Previous.Timestamp {
		elapsed := new(big.Int).SetUint64(s.Timestamp - s.Previous.Timestamp)
		accrued := quo(new(big.Int).Mul(s.LastInterestAccumulator, elapsed), domain.SecondsPerYear)
		s.TotalInterestAccrual = new(big.Int).Add(s.TotalInterestAccrual, accrued)
	}

	if item != nil && item.ImpliedFixedRate != nil {
		annualized := quo(
			new(big.Int).Mul(item.ImpliedFixedRate, new(big.Int).Neg(item.UnderlyingAmountRealized)),
			domain.RatePrecision,
		)
		s.LastInterestAccumulator = new(big.Int).Add(s.LastInterestAccumulator, annualized)
	}
}
