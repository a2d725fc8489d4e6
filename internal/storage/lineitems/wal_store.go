// Package lineitems persists accounting entries in a WAL.
package lineitems

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

const (
	defaultItemDir   = "./wal/lineitems"
	itemSegmentLimit = 1000
	itemMaxSegments  = 100
	itemKeyPrefix    = "line_item_"
)

// Record pairs a decoded line item with its WAL index.
type Record struct {
	Index uint64
	Item  domain.LineItem
}

type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed line item store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultItemDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "item_",
		SegmentThreshold: itemSegmentLimit,
		MaxSegments:      itemMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init line item WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save writes the line item to WAL, keyed by its bundle.
func (s *WALStore) Save(item *domain.LineItem) error {
	if s == nil || s.wal == nil {
		return errors.New("line item store is not initialized")
	}
	if item == nil || item.BundleID == "" {
		return fmt.Errorf("line item bundle id is required")
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return errors.Wrap(err, "marshal line item")
	}

	key := fmt.Sprintf("%s%s", itemKeyPrefix, item.BundleID)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// ItemsAfter returns all line items written after the provided WAL index.
func (s *WALStore) ItemsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("line item store is not initialized")
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
		if getErr != nil || !strings.HasPrefix(key, itemKeyPrefix) {
			continue
		}
		var item domain.LineItem
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, errors.Wrap(err, "decode line item")
		}
		records = append(records, Record{Index: idx, Item: item})
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
		return errors.New("line item store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
