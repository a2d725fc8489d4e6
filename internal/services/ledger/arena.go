package ledger

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// Arena holds the latest balance snapshot per (account, asset). Overlays
// give transaction-scoped isolation: an overlay resolves through its parent
// for reads, keeps its own writes, and either commits them in one step or is
// discarded.
type Arena struct {
	parent    *Arena
	snapshots map[domain.BalanceKey]*domain.BalanceSnapshot
}

func NewArena() *Arena {
	return &Arena{snapshots: make(map[domain.BalanceKey]*domain.BalanceSnapshot)}
}

// Overlay returns a child arena whose writes stay local until Commit.
func (a *Arena) Overlay() *Arena {
	return &Arena{parent: a, snapshots: make(map[domain.BalanceKey]*domain.BalanceSnapshot)}
}

// Latest resolves the newest snapshot for the key, searching overlay layers
// from the innermost outwards. Nil when the pair has no history.
func (a *Arena) Latest(key domain.BalanceKey) *domain.BalanceSnapshot {
	for layer := a; layer != nil; layer = layer.parent {
		if s, ok := layer.snapshots[key]; ok {
			return s
		}
	}
	return nil
}

// SnapshotFor returns the snapshot recording the given transaction's effect
// on the key, chaining a fresh one off the pair's history on first touch.
// Repeated calls within one transaction return the same snapshot.
func (a *Arena) SnapshotFor(key domain.BalanceKey, txHash common.Hash, blockNumber, timestamp uint64) *domain.BalanceSnapshot {
	if s, ok := a.snapshots[key]; ok && s.TxHash == txHash {
		return s
	}
	s := domain.NewBalanceSnapshot(key, txHash, blockNumber, timestamp, a.Latest(key))
	a.snapshots[key] = s
	return s
}

// Commit folds the overlay's snapshots into the parent. Calling Commit on a
// root arena is a no-op.
func (a *Arena) Commit() {
	if a.parent == nil {
		return
	}
	for key, s := range a.snapshots {
		a.parent.snapshots[key] = s
	}
}

// LatestAll returns the newest snapshot of every pair visible from this
// layer, resolving overlays innermost first.
func (a *Arena) LatestAll() []*domain.BalanceSnapshot {
	seen := make(map[domain.BalanceKey]struct{})
	var out []*domain.BalanceSnapshot
	for layer := a; layer != nil; layer = layer.parent {
		for key, s := range layer.snapshots {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Snapshots returns the snapshots written in this layer, excluding parents.
func (a *Arena) Snapshots() []*domain.BalanceSnapshot {
	out := make([]*domain.BalanceSnapshot, 0, len(a.snapshots))
	for _, s := range a.snapshots {
		out = append(out, s)
	}
	return out
}
