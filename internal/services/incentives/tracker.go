// Package incentives chains reward-claim snapshots off the balance snapshot
// history of yield tokens and derives claimed amounts from accumulator and
// debt movements.
package incentives

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pnltrace/internal/domain"
	"github.com/vadiminshakov/pnltrace/internal/registry"
)

// Oracle reads reward accounting state. The boolean result reports
// availability; false skips the dependent claim.
type Oracle interface {
	AccountIncentiveDebt(account common.Address, currencyID uint16) (*big.Int, bool)
	RewardDebt(account common.Address, reward domain.Token) (*big.Int, bool)
	AccumulatedRewardPerUnit(yieldToken domain.Token, reward domain.Token) (*big.Int, bool)
}

// Rewards lists reward configuration per currency.
type Rewards interface {
	Resolve(id domain.TokenID) (domain.Token, error)
	Incentives(currencyID uint16) (registry.IncentiveConfig, bool)
	NTokens() []domain.Token
}

type snapshotKey struct {
	balance *domain.BalanceSnapshot
	reward  domain.TokenID
}

// Store keeps incentive snapshots keyed by their balance snapshot. Like the
// ledger arena it supports transaction-scoped overlays that commit or
// disappear as a unit.
type Store struct {
	parent    *Store
	snapshots map[snapshotKey]*domain.IncentiveSnapshot
}

func NewStore() *Store {
	return &Store{snapshots: make(map[snapshotKey]*domain.IncentiveSnapshot)}
}

func (s *Store) Overlay() *Store {
	return &Store{parent: s, snapshots: make(map[snapshotKey]*domain.IncentiveSnapshot)}
}

func (s *Store) get(key snapshotKey) *domain.IncentiveSnapshot {
	for layer := s; layer != nil; layer = layer.parent {
		if snap, ok := layer.snapshots[key]; ok {
			return snap
		}
	}
	return nil
}

func (s *Store) Commit() {
	if s.parent == nil {
		return
	}
	for key, snap := range s.snapshots {
		s.parent.snapshots[key] = snap
	}
}

// Snapshots returns the incentive snapshots written in this layer.
func (s *Store) Snapshots() []*domain.IncentiveSnapshot {
	out := make([]*domain.IncentiveSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	return out
}

type Tracker struct {
	rewards Rewards
	oracle  Oracle
	logger  *zap.Logger
}

func NewTracker(rewards Rewards, oracle Oracle, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{rewards: rewards, oracle: oracle, logger: logger}
}

// SeedInitial establishes the reward-debt baseline when an account opens a
// yield token balance. Without it the first claim would count rewards
// accrued by previous holders.
func (t *Tracker) SeedInitial(store *Store, balance *domain.BalanceSnapshot, yieldToken domain.Token) {
	cfg, ok := t.rewards.Incentives(yieldToken.CurrencyID)
	if !ok {
		return
	}

	t.snapshotFor(store, balance, cfg.PrimaryReward, yieldToken)
	if cfg.SecondaryReward != "" {
		t.snapshotFor(store, balance, cfg.SecondaryReward, yieldToken)
	}
}

// snapshotFor returns the incentive snapshot for (balance, reward), creating
// and chaining it on first touch. Creation happens at most once per pair;
// repeated claims within one event observe the already-updated snapshot and
// produce nothing.
func (t *Tracker) snapshotFor(store *Store, balance *domain.BalanceSnapshot, rewardID domain.TokenID, yieldToken domain.Token) (*domain.IncentiveSnapshot, bool) {
	key := snapshotKey{balance: balance, reward: rewardID}
	if existing := store.get(key); existing != nil {
		return existing, false
	}

	reward, err := t.rewards.Resolve(rewardID)
	if err != nil {
		t.logger.Warn("reward token not in registry", zap.String("token", string(rewardID)))
		return nil, false
	}

	snap := &domain.IncentiveSnapshot{
		RewardToken:           rewardID,
		Balance:               balance,
		PreviousIncentiveDebt: big.NewInt(0),
		CurrentIncentiveDebt:  big.NewInt(0),
		TotalClaimed:          big.NewInt(0),
		AdjustedClaimed:       big.NewInt(0),
	}

	if balance.Previous != nil {
		if prev := store.get(snapshotKey{balance: balance.Previous, reward: rewardID}); prev != nil {
			snap.Previous = prev
			snap.PreviousIncentiveDebt = new(big.Int).Set(prev.CurrentIncentiveDebt)
			snap.TotalClaimed = new(big.Int).Set(prev.TotalClaimed)
			snap.AdjustedClaimed = new(big.Int).Set(prev.AdjustedClaimed)
		}
	}

	var debt *big.Int
	var ok bool
	if t.isPrimary(yieldToken.CurrencyID, rewardID) {
		debt, ok = t.oracle.AccountIncentiveDebt(balance.Key.Account, yieldToken.CurrencyID)
	} else {
		debt, ok = t.oracle.RewardDebt(balance.Key.Account, reward)
	}
	if ok && debt != nil {
		snap.CurrentIncentiveDebt = new(big.Int).Set(debt)
	}

	store.snapshots[key] = snap
	return snap, true
}

func (t *Tracker) isPrimary(currencyID uint16, rewardID domain.TokenID) bool {
	cfg, ok := t.rewards.Incentives(currencyID)
	return ok && cfg.PrimaryReward == rewardID
}

// Claim records a reward transfer against the yield token's balance history
// and returns the claimed amount. Zero means nothing was claimed: the
// snapshot already existed for this event, the debt did not move, or the
// oracle was unavailable.
func (t *Tracker) Claim(store *Store, balance *domain.BalanceSnapshot, transfer *domain.Transfer, yieldToken domain.Token) *big.Int {
	snap, created := t.snapshotFor(store, balance, transfer.Token, yieldToken)
	if !created || snap == nil ||
		snap.CurrentIncentiveDebt.Sign() == 0 ||
		snap.CurrentIncentiveDebt.Cmp(snap.PreviousIncentiveDebt) == 0 {
		return big.NewInt(0)
	}

	reward, err := t.rewards.Resolve(transfer.Token)
	if err != nil {
		return big.NewInt(0)
	}

	accumulated, ok := t.oracle.AccumulatedRewardPerUnit(yieldToken, reward)
	if !ok || accumulated == nil {
		return big.NewInt(0)
	}

	var claimed *big.Int
	if t.isPrimary(yieldToken.CurrencyID, transfer.Token) {
		// Mirrors the protocol's claim arithmetic: the accumulator is in
		// scalar precision against the pre-event balance.
		claimed = new(big.Int).Mul(balance.PreviousBalance, accumulated)
		claimed = quo(claimed, domain.ScalarPrecision)
		claimed.Sub(claimed, snap.PreviousIncentiveDebt)
	} else {
		// Secondary accumulators are denominated per internal token unit and
		// the debt in scalar precision; convert into the reward precision.
		claimed = new(big.Int).Mul(balance.PreviousBalance, accumulated)
		claimed = quo(claimed, domain.InternalTokenPrecision)
		claimed.Sub(claimed, snap.PreviousIncentiveDebt)
		claimed.Mul(claimed, reward.Precision)
		claimed = quo(claimed, domain.ScalarPrecision)
	}

	snap.TotalClaimed = new(big.Int).Add(snap.TotalClaimed, claimed)
	snap.AdjustedClaimed = new(big.Int).Add(snap.AdjustedClaimed, claimed)

	// When the position shrank, the reward attributable to the departed
	// portion is removed pro-rata.
	if balance.PreviousBalance.Cmp(balance.CurrentBalance) > 0 && balance.PreviousBalance.Sign() != 0 {
		departed := new(big.Int).Sub(balance.PreviousBalance, balance.CurrentBalance)
		adjustment := quo(new(big.Int).Mul(departed, snap.AdjustedClaimed), balance.PreviousBalance)
		snap.AdjustedClaimed = new(big.Int).Sub(snap.AdjustedClaimed, adjustment)
	}

	return claimed
}

// ShouldSnapshotManualClaim reports whether a reward transfer that arrived
// outside any balance-changing bundle warrants a fresh balance snapshot.
// Secondary rewards qualify when the transfer comes from the registered
// rewarder; primary rewards only when the account already has a claim
// baseline and its debt actually moved.
func (t *Tracker) ShouldSnapshotManualClaim(store *Store, kind domain.BundleKind, transfer *domain.Transfer, yieldToken domain.Token, latest *domain.BalanceSnapshot) bool {
	cfg, ok := t.rewards.Incentives(yieldToken.CurrencyID)
	if !ok {
		return false
	}

	if kind == domain.BundleTransferSecondaryIncentive {
		return cfg.SecondaryReward != "" && cfg.SecondaryReward == transfer.Token
	}

	if latest == nil || cfg.PrimaryReward != transfer.Token {
		return false
	}
	prev := store.get(snapshotKey{balance: latest, reward: transfer.Token})
	if prev == nil {
		return false
	}
	debt, ok := t.oracle.AccountIncentiveDebt(transfer.To, yieldToken.CurrencyID)
	if !ok || debt == nil || debt.Sign() == 0 {
		return false
	}
	return debt.Cmp(prev.CurrentIncentiveDebt) != 0
}

// ClaimItem builds the line item for a claim, attributed to the incentivized
// yield token so reporting can group rewards with the position that earned
// them.
func ClaimItem(bundle *domain.Bundle, transfer *domain.Transfer, claimed *big.Int, yieldToken domain.Token) *domain.LineItem {
	return &domain.LineItem{
		BundleID:                 bundle.ID(),
		BundleKind:               bundle.Kind,
		TxHash:                   bundle.TxHash,
		BlockNumber:              bundle.BlockNumber,
		Timestamp:                bundle.Timestamp,
		Account:                  transfer.To,
		Token:                    transfer.Token,
		Underlying:               transfer.Underlying,
		TokenAmount:              new(big.Int).Set(claimed),
		UnderlyingAmountRealized: big.NewInt(0),
		UnderlyingAmountSpot:     big.NewInt(0),
		RealizedPrice:            big.NewInt(0),
		SpotPrice:                big.NewInt(0),
		IncentivizedToken:        yieldToken.ID,
	}
}

func quo(x, y *big.Int) *big.Int {
	if y.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(x, y)
}
