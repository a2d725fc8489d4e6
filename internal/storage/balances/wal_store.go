// Package balances persists the append-only balance snapshot history in a
// WAL. Snapshots are flattened before writing: the in-memory chain link is
// dropped and is reconstructable from write order per (account, asset).
package balances

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
	defaultSnapshotDir   = "./wal/balances"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 100
	snapshotKeyPrefix    = "balance_snapshot_"
)

// Snapshot is the persisted form of one balance snapshot.
type Snapshot struct {
	Account     common.Address
	Token       domain.TokenID
	TxHash      common.Hash
	BlockNumber uint64
	Timestamp   uint64

	PreviousBalance         *big.Int
	CurrentBalance          *big.Int
	AccumulatedBalance      *big.Int
	AccumulatedCostRealized *big.Int
	AdjustedCostBasis       *big.Int

	CurrentPnL           *big.Int
	TotalPnL             *big.Int
	TotalILAndFees       *big.Int
	TotalInterestAccrual *big.Int

	ImpliedFixedRate        *big.Int `json:",omitempty"`
	LastInterestAccumulator *big.Int `json:",omitempty"`
}

// Record pairs a decoded snapshot with its WAL index.
type Record struct {
	Index    uint64
	Snapshot Snapshot
}

func flatten(s *domain.BalanceSnapshot) Snapshot {
	return Snapshot{
		Account:     s.Key.Account,
		Token:       s.Key.Token,
		TxHash:      s.TxHash,
		BlockNumber: s.BlockNumber,
		Timestamp:   s.Timestamp,

		PreviousBalance:         s.PreviousBalance,
		CurrentBalance:          s.CurrentBalance,
		AccumulatedBalance:      s.AccumulatedBalance,
		AccumulatedCostRealized: s.AccumulatedCostRealized,
		AdjustedCostBasis:       s.AdjustedCostBasis,

		CurrentPnL:           s.CurrentPnL,
		TotalPnL:             s.TotalPnL,
		TotalILAndFees:       s.TotalILAndFees,
		TotalInterestAccrual: s.TotalInterestAccrual,

		ImpliedFixedRate:        s.ImpliedFixedRate,
		LastInterestAccumulator: s.LastInterestAccumulator,
	}
}

type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed snapshot store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultSnapshotDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init balance snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save flattens and writes the snapshot to WAL.
func (s *WALStore) Save(snapshot *domain.BalanceSnapshot) error {
	if s == nil || s.wal == nil {
		return errors.New("balance snapshot store is not initialized")
	}
	if snapshot == nil || snapshot.Key.Token == "" {
		return fmt.Errorf("balance snapshot key is required")
	}

	payload, err := json.Marshal(flatten(snapshot))
	if err != nil {
		return errors.Wrap(err, "marshal balance snapshot")
	}

	key := fmt.Sprintf("%s%s_%s", snapshotKeyPrefix, snapshot.Key.Account.Hex(), snapshot.Key.Token)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// SnapshotsAfter returns all snapshots written after the provided WAL index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("balance snapshot store is not initialized")
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
		if getErr != nil || !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		var snapshot Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode balance snapshot")
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
		return errors.New("balance snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
