// Package storage wires the per-record WAL stores into the single sink the
// processor writes through.
package storage

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/pnltrace/internal/domain"
	"github.com/vadiminshakov/pnltrace/internal/storage/balances"
	"github.com/vadiminshakov/pnltrace/internal/storage/bundles"
	"github.com/vadiminshakov/pnltrace/internal/storage/lineitems"
	"github.com/vadiminshakov/pnltrace/internal/storage/rewards"
)

type Sinks struct {
	Bundles   *bundles.WALStore
	LineItems *lineitems.WALStore
	Balances  *balances.WALStore
	Rewards   *rewards.WALStore
}

// NewSinks opens all record stores under root, one subdirectory each.
func NewSinks(root string) (*Sinks, error) {
	bundleStore, err := bundles.NewWALStore(filepath.Join(root, "bundles"))
	if err != nil {
		return nil, err
	}
	itemStore, err := lineitems.NewWALStore(filepath.Join(root, "lineitems"))
	if err != nil {
		return nil, err
	}
	balanceStore, err := balances.NewWALStore(filepath.Join(root, "balances"))
	if err != nil {
		return nil, err
	}
	rewardStore, err := rewards.NewWALStore(filepath.Join(root, "rewards"))
	if err != nil {
		return nil, err
	}

	return &Sinks{
		Bundles:   bundleStore,
		LineItems: itemStore,
		Balances:  balanceStore,
		Rewards:   rewardStore,
	}, nil
}

func (s *Sinks) SaveBundle(bundle *domain.Bundle) error {
	return s.Bundles.Save(bundle)
}

func (s *Sinks) SaveLineItem(item *domain.LineItem) error {
	return s.LineItems.Save(item)
}

func (s *Sinks) SaveBalanceSnapshot(snapshot *domain.BalanceSnapshot) error {
	return s.Balances.Save(snapshot)
}

func (s *Sinks) SaveIncentiveSnapshot(snapshot *domain.IncentiveSnapshot) error {
	return s.Rewards.Save(snapshot)
}

// Close closes every store and returns the first failure.
func (s *Sinks) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	for _, closer := range []interface{ Close() error }{s.Bundles, s.LineItems, s.Balances, s.Rewards} {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close store")
		}
	}
	return firstErr
}
