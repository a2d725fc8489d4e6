// Package bundler groups the raw transfers of one transaction into named
// operation bundles using an ordered, table-driven pattern matcher.
package bundler

import (
	"github.com/pkg/errors"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// ErrCorruptWindow signals that criterion lookbehind arithmetic went out of
// range. It indicates data corruption and is fatal for the transaction.
var ErrCorruptWindow = errors.New("bundle criterion window out of range")

// Criterion is one entry of the ordered criteria table. WindowSize is the
// exact number of not-yet-bundled transfers the criterion applies to;
// LookBehind extends the match window backwards over already bundled
// transfers. When Rewrite is set the produced bundle starts at the window
// head and absorbs the lookbehind transfers, superseding the bundles that
// owned them; otherwise the bundle covers the first BundleSize unbundled
// transfers and the lookbehind head stays purely contextual.
type Criterion struct {
	Kind       domain.BundleKind
	WindowSize int
	LookBehind int
	CanStart   bool
	BundleSize int
	Rewrite    bool
	Match      func(window []*domain.Transfer) bool
}

// State carries the per-transaction classifier progress: every transfer seen
// so far, the bundles created so far, and the cursor marking the first
// not-yet-bundled transfer. It is passed explicitly so the classifier can be
// exercised in isolation.
type State struct {
	Transfers        []*domain.Transfer
	Bundles          []*domain.Bundle
	LastBundledIndex int

	criteria []Criterion
}

// NewState returns an empty classifier state using the default criteria
// table.
func NewState() *State {
	return NewStateWithCriteria(Criteria)
}

// NewStateWithCriteria allows tests to run the matcher against a custom
// table.
func NewStateWithCriteria(criteria []Criterion) *State {
	return &State{criteria: criteria}
}

// Absorb appends the transfer and scans the criteria table in declared
// order. The first criterion whose window, lookbehind and predicate are all
// satisfied wins; later entries are not consulted. It returns true when a
// bundle was created. Transfers that match nothing stay pending for the next
// append; a transaction ending with pending transfers is not an error.
func (s *State) Absorb(transfer *domain.Transfer) (bool, error) {
	s.Transfers = append(s.Transfers, transfer)

	for i := range s.criteria {
		c := &s.criteria[i]

		if len(s.Transfers)-s.LastBundledIndex != c.WindowSize {
			continue
		}

		lookBehind := c.LookBehind
		if s.LastBundledIndex < c.LookBehind {
			if !c.CanStart || s.LastBundledIndex != 0 {
				continue
			}
			lookBehind = 0
		}

		windowStart := s.LastBundledIndex - lookBehind
		if windowStart < 0 {
			return false, errors.Wrapf(ErrCorruptWindow, "criterion %s: window start %d", c.Kind, windowStart)
		}
		window := s.Transfers[windowStart:]

		if !c.Match(window) {
			continue
		}

		bundleOffset := lookBehind
		if c.Rewrite {
			bundleOffset = 0
		}
		if bundleOffset+c.BundleSize > len(window) {
			return false, errors.Wrapf(ErrCorruptWindow, "criterion %s: bundle size %d exceeds window of %d",
				c.Kind, c.BundleSize, len(window))
		}

		members := window[bundleOffset : bundleOffset+c.BundleSize]
		bundle := &domain.Bundle{
			Kind:          c.Kind,
			TxHash:        transfer.TxHash,
			BlockNumber:   transfer.BlockNumber,
			Timestamp:     transfer.Timestamp,
			StartLogIndex: members[0].LogIndex,
			EndLogIndex:   members[len(members)-1].LogIndex,
			Transfers:     members,
		}

		if c.Rewrite {
			s.dropSuperseded(bundle)
		}
		for _, t := range members {
			t.BundleID = bundle.ID()
		}

		s.Bundles = append(s.Bundles, bundle)
		s.LastBundledIndex = len(s.Transfers)
		return true, nil
	}

	return false, nil
}

// Pending returns the transfers after the last bundle boundary.
func (s *State) Pending() []*domain.Transfer {
	return s.Transfers[s.LastBundledIndex:]
}

// dropSuperseded removes bundles whose span is absorbed by a rewrite match.
func (s *State) dropSuperseded(b *domain.Bundle) {
	kept := s.Bundles[:0]
	for _, existing := range s.Bundles {
		if existing.EndLogIndex >= b.StartLogIndex && existing.StartLogIndex <= b.EndLogIndex {
			continue
		}
		kept = append(kept, existing)
	}
	s.Bundles = kept
}
