package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceKey addresses one (account, asset) ledger chain.
type BalanceKey struct {
	Account common.Address
	Token   TokenID
}

// BalanceSnapshot is an append-only record of ledger state for one
// (account, asset) pair, chained to its predecessor. A new snapshot is
// created for every event that changes accounting state; existing snapshots
// are never mutated afterwards.
type BalanceSnapshot struct {
	Key         BalanceKey
	TxHash      common.Hash
	BlockNumber uint64
	Timestamp   uint64

	PreviousBalance *big.Int
	CurrentBalance  *big.Int

	// AccumulatedBalance feeds the average-cost recurrence and may diverge
	// from CurrentBalance because of dust handling.
	AccumulatedBalance      *big.Int
	AccumulatedCostRealized *big.Int

	// AdjustedCostBasis is the moving-average cost per unit in underlying
	// precision, always non-negative.
	AdjustedCostBasis *big.Int

	CurrentPnL           *big.Int
	TotalPnL             *big.Int
	TotalILAndFees       *big.Int
	TotalInterestAccrual *big.Int

	// ImpliedFixedRate is the position-weighted entry rate for
	// maturity-bearing assets, nil until one is observed.
	ImpliedFixedRate *big.Int

	// LastInterestAccumulator is the oracle accumulator (nToken, vault share)
	// or the annualized fixed-rate accrual (fCash) carried between snapshots.
	// Nil until seeded.
	LastInterestAccumulator *big.Int

	Previous *BalanceSnapshot
}

// NewBalanceSnapshot chains a fresh snapshot off prev (which may be nil for
// the first event of a pair). Accumulators restart when the previous balance
// was zero; realized cost and total PnL always carry forward.
func NewBalanceSnapshot(key BalanceKey, txHash common.Hash, blockNumber, timestamp uint64, prev *BalanceSnapshot) *BalanceSnapshot {
	s := &BalanceSnapshot{
		Key:         key,
		TxHash:      txHash,
		BlockNumber: blockNumber,
		Timestamp:   timestamp,

		PreviousBalance:         big.NewInt(0),
		CurrentBalance:          big.NewInt(0),
		AccumulatedBalance:      big.NewInt(0),
		AccumulatedCostRealized: big.NewInt(0),
		AdjustedCostBasis:       big.NewInt(0),
		CurrentPnL:              big.NewInt(0),
		TotalPnL:                big.NewInt(0),
		TotalILAndFees:          big.NewInt(0),
		TotalInterestAccrual:    big.NewInt(0),

		Previous: prev,
	}

	if prev == nil {
		return s
	}

	s.PreviousBalance = new(big.Int).Set(prev.CurrentBalance)
	s.CurrentBalance = new(big.Int).Set(prev.CurrentBalance)
	s.TotalPnL = new(big.Int).Set(prev.TotalPnL)
	s.AccumulatedCostRealized = new(big.Int).Set(prev.AccumulatedCostRealized)
	s.AdjustedCostBasis = new(big.Int).Set(prev.AdjustedCostBasis)
	s.CurrentPnL = new(big.Int).Set(prev.CurrentPnL)
	s.TotalInterestAccrual = new(big.Int).Set(prev.TotalInterestAccrual)
	if prev.ImpliedFixedRate != nil {
		s.ImpliedFixedRate = new(big.Int).Set(prev.ImpliedFixedRate)
	}
	if prev.LastInterestAccumulator != nil {
		s.LastInterestAccumulator = new(big.Int).Set(prev.LastInterestAccumulator)
	}

	if prev.CurrentBalance.Sign() != 0 {
		s.AccumulatedBalance = new(big.Int).Set(prev.AccumulatedBalance)
		s.TotalILAndFees = new(big.Int).Set(prev.TotalILAndFees)
	}

	return s
}
