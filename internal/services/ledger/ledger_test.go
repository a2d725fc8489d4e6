package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

var (
	holder = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	tx1    = common.HexToHash("0x0100000000000000000000000000000000000000000000000000000000000001")
	tx2    = common.HexToHash("0x0200000000000000000000000000000000000000000000000000000000000002")
	tx3    = common.HexToHash("0x0300000000000000000000000000000000000000000000000000000000000003")
)

// parValuation marks every position at par and serves a fixed oracle
// interest accumulator.
type parValuation struct {
	rate *big.Int
}

func (v *parValuation) ConvertToUnderlying(amount *big.Int, token domain.Token, at uint64) (*big.Int, bool) {
	return new(big.Int).Set(amount), true
}

func (v *parValuation) LatestInterestRate(token domain.Token) (*big.Int, bool) {
	if v.rate == nil {
		return nil, false
	}
	return new(big.Int).Set(v.rate), true
}

func testToken(tt domain.TokenType) domain.Token {
	return domain.Token{ID: "asset", Type: tt, Precision: big.NewInt(1e8), Underlying: "underlying"}
}

func entry(txHash common.Hash, timestamp uint64, tokenAmount, realized, spot int64) *domain.LineItem {
	return &domain.LineItem{
		TxHash:                   txHash,
		Timestamp:                timestamp,
		Account:                  holder,
		Token:                    "asset",
		Underlying:               "underlying",
		TokenAmount:              big.NewInt(tokenAmount),
		UnderlyingAmountRealized: big.NewInt(realized),
		UnderlyingAmountSpot:     big.NewInt(spot),
	}
}

func TestApplyAverageCostBasisAcrossBuys(t *testing.T) {
	l := New(&parValuation{}, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypeNToken)

	// Buy 100 units at a realized cost of 100.
	s1 := l.Apply(arena, entry(tx1, 1000, 100e8, -100e8, -100e8), tok)
	assert.Equal(t, big.NewInt(100e8), s1.AccumulatedBalance)
	assert.Equal(t, big.NewInt(100e8), s1.AccumulatedCostRealized)
	assert.Equal(t, big.NewInt(1e8), s1.AdjustedCostBasis)

	// Buy 50 more at a realized cost of 75.
	s2 := l.Apply(arena, entry(tx2, 2000, 50e8, -75e8, -75e8), tok)
	assert.Equal(t, big.NewInt(150e8), s2.AccumulatedBalance)
	assert.Equal(t, big.NewInt(175e8), s2.AccumulatedCostRealized)
	// 175e8 * 1e8 / 150e8, truncated.
	assert.Equal(t, big.NewInt(116_666_666), s2.AdjustedCostBasis)
	assert.Same(t, s1, s2.Previous)
}

func TestApplyReleasesCostAtAdjustedBasis(t *testing.T) {
	l := New(&parValuation{}, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypeNToken)

	l.Apply(arena, entry(tx1, 1000, 100e8, -100e8, -100e8), tok)
	s := l.Apply(arena, entry(tx2, 2000, -40e8, 50e8, 50e8), tok)

	assert.Equal(t, big.NewInt(60e8), s.AccumulatedBalance)
	// 40 units released at basis 1: cost drops by 40.
	assert.Equal(t, big.NewInt(60e8), s.AccumulatedCostRealized)
	assert.Equal(t, big.NewInt(1e8), s.AdjustedCostBasis)
	// Sold above basis: total PnL is the spot value minus remaining cost.
	assert.Zero(t, s.CurrentPnL.Sign())
	assert.Zero(t, s.TotalPnL.Sign())
}

func TestApplyNegativeFirstSeedsBasisFromEntry(t *testing.T) {
	l := New(&parValuation{}, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypeFCash)

	// A debt entry arrives before any positive amount.
	s := l.Apply(arena, entry(tx1, 1000, -100e8, 95e8, 96e8), tok)

	assert.Equal(t, big.NewInt(-100e8), s.AccumulatedBalance)
	// Basis seeded from the entry itself: -95e8 * 1e8 / -100e8.
	assert.Equal(t, big.NewInt(95_000_000), s.AdjustedCostBasis)
	// Cost released at the seeded basis.
	assert.Equal(t, big.NewInt(-95e8), s.AccumulatedCostRealized)
}

func TestApplyDustClosesPosition(t *testing.T) {
	l := New(&parValuation{}, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypeNToken)

	l.Apply(arena, entry(tx1, 1000, 100e8, -100e8, -100e8), tok)
	// Sell everything but 50 raw units, inside the dust band.
	s := l.Apply(arena, entry(tx2, 2000, -100e8+50, 110e8, 110e8), tok)

	assert.Equal(t, big.NewInt(0), s.AccumulatedBalance)
	assert.Equal(t, big.NewInt(0), s.AdjustedCostBasis)
	assert.Equal(t, big.NewInt(0), s.CurrentPnL)
	assert.Equal(t, big.NewInt(0), s.TotalILAndFees)
	assert.Nil(t, s.ImpliedFixedRate)
	// Cost released at basis leaves 50 raw units of residual cost; the
	// closed position's final PnL is its negation.
	assert.Equal(t, big.NewInt(50), s.AccumulatedCostRealized)
	assert.Equal(t, big.NewInt(-50), s.TotalPnL)
}

func TestApplyTransientMarking(t *testing.T) {
	l := New(&parValuation{}, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypePrimeCash)

	small := entry(tx1, 1000, 4000, -4000, -4000)
	l.Apply(arena, small, tok)
	assert.True(t, small.IsTransient)

	big_ := entry(tx2, 2000, 100e8, -100e8, -100e8)
	l.Apply(arena, big_, tok)
	assert.False(t, big_.IsTransient)
}

func TestUpdateILAndFees(t *testing.T) {
	l := New(&parValuation{}, nil)

	t.Run("positive divergence accrues", func(t *testing.T) {
		arena := NewArena()
		tok := testToken(domain.TokenTypeNToken)
		// Mint: realized -100, spot -102 stored negated, divergence +2e8.
		s := l.Apply(arena, entry(tx1, 1000, 100e8, -100e8, -102e8), tok)
		assert.Equal(t, big.NewInt(2e8), s.TotalILAndFees)
	})

	t.Run("reduction scales pro rata", func(t *testing.T) {
		arena := NewArena()
		tok := testToken(domain.TokenTypeNToken)
		l.Apply(arena, entry(tx1, 1000, 100e8, -100e8, -102e8), tok)
		// Burn half with a negative divergence of -1e8.
		s := l.Apply(arena, entry(tx2, 2000, -50e8, 49e8, 50e8), tok)
		// total = 2e8 - 1e8 = 1e8, then scaled by (1 + (-50e8/100e8)).
		assert.Equal(t, big.NewInt(5e7), s.TotalILAndFees)
	})

	t.Run("dust sized balance leaves total unchanged", func(t *testing.T) {
		arena := NewArena()
		s := arena.SnapshotFor(domain.BalanceKey{Account: holder, Token: "asset"}, tx1, 1, 1000)
		s.AccumulatedBalance = big.NewInt(10_000_000)
		s.TotalILAndFees = big.NewInt(77)

		// A reduction of 1 raw unit against a 10M-unit balance.
		item := entry(tx1, 1000, -1, 1, 1)
		l.updateILAndFees(s, item)
		assert.Equal(t, big.NewInt(77), s.TotalILAndFees)
	})
}

func TestUpdatePnLVariableRateIsAllInterest(t *testing.T) {
	l := New(&parValuation{}, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypePrimeCash)

	l.Apply(arena, entry(tx1, 1000, 100e8, -98e8, -98e8), tok)
	s := arena.Latest(domain.BalanceKey{Account: holder, Token: "asset"})

	// Par value 100e8 against 98e8 cost.
	assert.Equal(t, big.NewInt(2e8), s.CurrentPnL)
	assert.Equal(t, s.CurrentPnL, s.TotalInterestAccrual)
}

func TestUpdatePnLYieldTokenIntegratesAccumulator(t *testing.T) {
	valuation := &parValuation{rate: big.NewInt(1000)}
	l := New(valuation, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypeNToken)

	s1 := l.Apply(arena, entry(tx1, 1000, 100e8, -100e8, -100e8), tok)
	// First touch seeds the accumulator without accruing.
	assert.Equal(t, big.NewInt(0), s1.TotalInterestAccrual)
	require.NotNil(t, s1.LastInterestAccumulator)
	assert.Equal(t, big.NewInt(1000), s1.LastInterestAccumulator)

	valuation.rate = big.NewInt(1500)
	s2 := l.Apply(arena, entry(tx2, 2000, 10e8, -10e8, -10e8), tok)
	// (1500 - 1000) * previousBalance / tokenPrecision.
	assert.Equal(t, big.NewInt(50_000), s2.TotalInterestAccrual)
	assert.Equal(t, big.NewInt(1500), s2.LastInterestAccumulator)
}

func TestUpdatePnLFixedRateAccruesOverTime(t *testing.T) {
	l := New(&parValuation{}, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypeFCash)

	buy := entry(tx1, 1000, 100e8, -95e8, -96e8)
	buy.ImpliedFixedRate = big.NewInt(50_000_000) // 5% in rate precision
	s1 := l.Apply(arena, buy, tok)
	require.NotNil(t, s1.LastInterestAccumulator)
	// 5% of the 95e8 entry cost, annualized.
	assert.Equal(t, big.NewInt(475_000_000), s1.LastInterestAccumulator)
	assert.Equal(t, big.NewInt(0), s1.TotalInterestAccrual)

	// Half a year later the accrual is half the annualized amount.
	halfYear := uint64(1000) + 31_104_000/2
	s2 := l.Apply(arena, entry(tx2, halfYear, 1e8, -1e8, -1e8), tok)
	assert.Equal(t, big.NewInt(237_500_000), s2.TotalInterestAccrual)
}

func TestArenaOverlayIsolation(t *testing.T) {
	l := New(&parValuation{}, nil)
	root := NewArena()
	tok := testToken(domain.TokenTypeNToken)
	key := domain.BalanceKey{Account: holder, Token: "asset"}

	l.Apply(root, entry(tx1, 1000, 100e8, -100e8, -100e8), tok)

	t.Run("discarded overlay leaves root untouched", func(t *testing.T) {
		overlay := root.Overlay()
		l.Apply(overlay, entry(tx2, 2000, 50e8, -50e8, -50e8), tok)
		// Overlay dropped without commit.
		assert.Equal(t, big.NewInt(100e8), root.Latest(key).AccumulatedBalance)
	})

	t.Run("committed overlay folds into root", func(t *testing.T) {
		overlay := root.Overlay()
		s := l.Apply(overlay, entry(tx3, 3000, 50e8, -50e8, -50e8), tok)
		assert.Equal(t, big.NewInt(150e8), s.AccumulatedBalance)
		overlay.Commit()
		assert.Same(t, s, root.Latest(key))
	})
}

func TestArenaSnapshotReusedWithinTransaction(t *testing.T) {
	arena := NewArena()
	key := domain.BalanceKey{Account: holder, Token: "asset"}

	s1 := arena.SnapshotFor(key, tx1, 1, 1000)
	s2 := arena.SnapshotFor(key, tx1, 1, 1000)
	assert.Same(t, s1, s2)

	s3 := arena.SnapshotFor(key, tx2, 2, 2000)
	assert.NotSame(t, s1, s3)
	assert.Same(t, s1, s3.Previous)
}

func TestSnapshotRestartsAfterZeroBalance(t *testing.T) {
	l := New(&parValuation{}, nil)
	arena := NewArena()
	tok := testToken(domain.TokenTypeNToken)

	l.Apply(arena, entry(tx1, 1000, 100e8, -100e8, -102e8), tok)
	// Close out fully.
	l.Apply(arena, entry(tx2, 2000, -100e8, 105e8, 105e8), tok)

	s := l.Apply(arena, entry(tx3, 3000, 20e8, -20e8, -20e8), tok)
	// Accumulated balance and IL restart from zero; realized cost carries on.
	assert.Equal(t, big.NewInt(20e8), s.AccumulatedBalance)
	assert.Equal(t, big.NewInt(0), s.TotalILAndFees)
}
