// Package processor drives the per-transaction pipeline: transfers are
// bundled, bundles synthesized into line items, line items folded into the
// ledger, and reward claims chained onto the affected balances. Each
// transaction applies atomically against the committed state.
package processor

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pnltrace/internal/domain"
	"github.com/vadiminshakov/pnltrace/internal/services/bundler"
	"github.com/vadiminshakov/pnltrace/internal/services/incentives"
	"github.com/vadiminshakov/pnltrace/internal/services/ledger"
	"github.com/vadiminshakov/pnltrace/internal/services/lineitem"
)

// TokenSource resolves asset metadata and enumerates yield tokens for
// reward-claim reconciliation.
type TokenSource interface {
	Resolve(id domain.TokenID) (domain.Token, error)
	NTokens() []domain.Token
}

// Sink receives finalized records. A sink error fails the transaction
// before any state is committed.
type Sink interface {
	SaveBundle(bundle *domain.Bundle) error
	SaveLineItem(item *domain.LineItem) error
	SaveBalanceSnapshot(snapshot *domain.BalanceSnapshot) error
	SaveIncentiveSnapshot(snapshot *domain.IncentiveSnapshot) error
}

// Result summarizes one committed transaction.
type Result struct {
	RunID     string
	TxHash    string
	Bundles   int
	LineItems int
	Snapshots int
	Claims    int

	// Unbundled lists transfers no criterion matched. They are not an
	// error; the transaction commits without them producing entries.
	Unbundled []*domain.Transfer
}

type Processor struct {
	runID       string
	tokens      TokenSource
	synthesizer *lineitem.Synthesizer
	ledger      *ledger.Ledger
	tracker     *incentives.Tracker
	sink        Sink
	logger      *zap.Logger

	arena *ledger.Arena
	store *incentives.Store
}

func New(tokens TokenSource, synthesizer *lineitem.Synthesizer, ldgr *ledger.Ledger, tracker *incentives.Tracker, sink Sink, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		runID:       uuid.NewString(),
		tokens:      tokens,
		synthesizer: synthesizer,
		ledger:      ldgr,
		tracker:     tracker,
		sink:        sink,
		logger:      logger,
		arena:       ledger.NewArena(),
		store:       incentives.NewStore(),
	}
}

// RunID identifies this processor's run in emitted results.
func (p *Processor) RunID() string { return p.runID }

// Arena exposes the committed ledger state, mainly for reporting.
func (p *Processor) Arena() *ledger.Arena { return p.arena }

// ProcessTransaction classifies, synthesizes and applies one transaction.
// All bookkeeping happens on transaction-scoped overlays; a data-integrity
// failure or sink error discards the overlays and returns the error, so the
// committed state never observes a partial transaction.
func (p *Processor) ProcessTransaction(txn *domain.Txn) (Result, error) {
	result := Result{RunID: p.runID, TxHash: txn.Hash.Hex()}

	state := bundler.NewState()
	for _, transfer := range txn.Transfers {
		if transfer.TxHash != txn.Hash {
			return result, errors.Errorf("transfer %d carries hash %s in transaction %s",
				transfer.LogIndex, transfer.TxHash.Hex(), txn.Hash.Hex())
		}
		if _, err := state.Absorb(transfer); err != nil {
			return result, errors.Wrapf(err, "bundle transaction %s", txn.Hash.Hex())
		}
	}

	arena := p.arena.Overlay()
	store := p.store.Overlay()

	var items []*domain.LineItem
	for i, bundle := range state.Bundles {
		prior := state.Bundles[:i]

		if bundle.Kind == domain.BundleTransferIncentive || bundle.Kind == domain.BundleTransferSecondaryIncentive {
			claimItems, err := p.processClaim(arena, store, txn, bundle)
			if err != nil {
				return result, err
			}
			result.Claims += len(claimItems)
			items = append(items, claimItems...)
			continue
		}

		for _, item := range p.synthesizer.Synthesize(bundle, prior) {
			token, err := p.tokens.Resolve(item.Token)
			if err != nil {
				return result, errors.Wrapf(err, "line item in bundle %s", bundle.ID())
			}

			snapshot := p.ledger.Apply(arena, item, token)
			if token.Type == domain.TokenTypeNToken && snapshot.PreviousBalance.Sign() == 0 {
				p.tracker.SeedInitial(store, snapshot, token)
			}
			items = append(items, item)
		}
	}

	if err := p.emit(state.Bundles, items, arena, store); err != nil {
		return result, err
	}

	arena.Commit()
	store.Commit()

	result.Bundles = len(state.Bundles)
	result.LineItems = len(items)
	result.Snapshots = len(arena.Snapshots())
	result.Unbundled = state.Pending()

	if len(result.Unbundled) > 0 {
		p.logger.Debug("transaction left unbundled transfers",
			zap.String("tx", txn.Hash.Hex()),
			zap.Int("count", len(result.Unbundled)))
	}
	return result, nil
}

// processClaim reconciles one reward transfer against every yield token the
// receiving account may hold. Balances touched earlier in the transaction
// reuse their snapshot; untouched balances get a fresh one only when the
// claim gate says the reward debt actually moved.
func (p *Processor) processClaim(arena *ledger.Arena, store *incentives.Store, txn *domain.Txn, bundle *domain.Bundle) ([]*domain.LineItem, error) {
	transfer := bundle.Transfers[0]
	var items []*domain.LineItem

	for _, yieldToken := range p.tokens.NTokens() {
		key := domain.BalanceKey{Account: transfer.To, Token: yieldToken.ID}
		latest := arena.Latest(key)

		var balance *domain.BalanceSnapshot
		switch {
		case latest != nil && latest.TxHash == txn.Hash:
			balance = latest
		case p.tracker.ShouldSnapshotManualClaim(store, bundle.Kind, transfer, yieldToken, latest):
			balance = arena.SnapshotFor(key, txn.Hash, txn.BlockNumber, txn.Timestamp)
			p.ledger.Refresh(balance, yieldToken)
		default:
			continue
		}

		claimed := p.tracker.Claim(store, balance, transfer, yieldToken)
		if claimed.Sign() == 0 {
			continue
		}
		items = append(items, incentives.ClaimItem(bundle, transfer, claimed, yieldToken))
	}
	return items, nil
}

func (p *Processor) emit(bundles []*domain.Bundle, items []*domain.LineItem, arena *ledger.Arena, store *incentives.Store) error {
	for _, bundle := range bundles {
		if err := p.sink.SaveBundle(bundle); err != nil {
			return errors.Wrap(err, "persist bundle")
		}
	}
	for _, item := range items {
		if err := p.sink.SaveLineItem(item); err != nil {
			return errors.Wrap(err, "persist line item")
		}
	}
	for _, snapshot := range arena.Snapshots() {
		if err := p.sink.SaveBalanceSnapshot(snapshot); err != nil {
			return errors.Wrap(err, "persist balance snapshot")
		}
	}
	for _, snapshot := range store.Snapshots() {
		if err := p.sink.SaveIncentiveSnapshot(snapshot); err != nil {
			return errors.Wrap(err, "persist incentive snapshot")
		}
	}
	return nil
}
