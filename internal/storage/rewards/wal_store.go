// Package rewards persists incentive claim snapshots in a WAL. The
// in-memory links to balance and predecessor snapshots are flattened to the
// identifying balance coordinates.
package rewards

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

const (
	defaultRewardDir   = "./wal/rewards"
	rewardSegmentLimit = 1000
	rewardMaxSegments  = 100
	rewardKeyPrefix    = "incentive_snapshot_"
)

// Snapshot is the persisted form of one incentive snapshot.
type Snapshot struct {
	RewardToken domain.TokenID
	Account     common.Address
	YieldToken  domain.TokenID
	TxHash      common.Hash
	BlockNumber uint64
	Timestamp   uint64

	PreviousIncentiveDebt *big.Int
	CurrentIncentiveDebt  *big.Int
	TotalClaimed          *big.Int
	AdjustedClaimed       *big.Int
}

// Record pairs a decoded snapshot with its WAL index.
type Record struct {
	Index    uint64
	Snapshot Snapshot
}

func flatten(s *domain.IncentiveSnapshot) Snapshot {
	return Snapshot{
		RewardToken: s.RewardToken,
		Account:     s.Balance.Key.Account,
		YieldToken:  s.Balance.Key.Token,
		TxHash:      s.Balance.TxHash,
		BlockNumber: s.Balance.BlockNumber,
		Timestamp:   s.Balance.Timestamp,

		PreviousIncentiveDebt: s.PreviousIncentiveDebt,
		CurrentIncentiveDebt:  s.CurrentIncentiveDebt,
		TotalClaimed:          s.TotalClaimed,
		AdjustedClaimed:       s.AdjustedClaimed,
	}
}

type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed incentive snapshot store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultRewardDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "reward_",
		SegmentThreshold: rewardSegmentLimit,
		MaxSegments:      rewardMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init incentive snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save flattens and writes the snapshot to WAL.
func (s *WALStore) Save(snapshot *domain.IncentiveSnapshot) error {
	if s == nil || s.wal == nil {
		return errors.New("incentive snapshot store is not initialized")
	}
	if snapshot == nil || snapshot.Balance == nil {
		return fmt.Errorf("incentive snapshot balance is required")
	}

	payload, err := json.Marshal(flatten(snapshot))
	if err != nil {
		return errors.Wrap(err, "marshal incentive snapshot")
	}

	key := fmt.Sprintf("%s%s_%s", rewardKeyPrefix, snapshot.Balance.Key.Account.Hex(), snapshot.RewardToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// SnapshotsAfter returns all snapshots written after the provided WAL index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("incentive snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, getErr := s.wal.Get(idx)
		if getErr != nil || !strings.HasPrefix(key, rewardKeyPrefix) {
			continue
		}
		var snapshot Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode incentive snapshot")
		}
		records = append(records, Record{Index: idx, Snapshot: snapshot})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("incentive snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
