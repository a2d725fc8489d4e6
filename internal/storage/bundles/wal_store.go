// Package bundles persists classified transfer bundles in a WAL for
// recovery and downstream streaming.
package bundles

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
	defaultBundleDir   = "./wal/bundles"
	bundleSegmentLimit = 1000
	bundleMaxSegments  = 100
	bundleKeyPrefix    = "bundle_"
)

// Record pairs a decoded bundle with its WAL index so consumers can resume
// from where they stopped.
type Record struct {
	Index  uint64
	Bundle domain.Bundle
}

type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed bundle store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultBundleDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "bundle_",
		SegmentThreshold: bundleSegmentLimit,
		MaxSegments:      bundleMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init bundle WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save writes the bundle to WAL, keyed by its stable identifier.
func (s *WALStore) Save(bundle *domain.Bundle) error {
	if s == nil || s.wal == nil {
		return errors.New("bundle store is not initialized")
	}
	if bundle == nil || len(bundle.Transfers) == 0 {
		return fmt.Errorf("bundle must carry at least one transfer")
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return errors.Wrap(err, "marshal bundle")
	}

	key := fmt.Sprintf("%s%s", bundleKeyPrefix, bundle.ID())

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// BundlesAfter returns all bundles written after the provided WAL index.
func (s *WALStore) BundlesAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("bundle store is not initialized")
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
		if getErr != nil || !strings.HasPrefix(key, bundleKeyPrefix) {
			continue
		}
		var bundle domain.Bundle
		if err := json.Unmarshal(payload, &bundle); err != nil {
			return nil, errors.Wrap(err, "decode bundle")
		}
		records = append(records, Record{Index: idx, Bundle: bundle})
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
		return errors.New("bundle store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
