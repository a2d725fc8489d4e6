package domain

import "math/big"

// IncentiveSnapshot tracks reward claim debts for one (balance snapshot,
// reward token) pair, chained to the incentive snapshot of the previous
// balance snapshot. Created at most once per pair.
type IncentiveSnapshot struct {
	RewardToken TokenID
	Balance     *BalanceSnapshot

	PreviousIncentiveDebt *big.Int
	CurrentIncentiveDebt  *big.Int

	// TotalClaimed accumulates every claim; AdjustedClaimed is reduced
	// pro-rata when the underlying position shrinks.
	TotalClaimed    *big.Int
	AdjustedClaimed *big.Int

	Previous *IncentiveSnapshot
}
