// Command pnltrace replays decoded asset transfers through the bundling
// classifier and the cost-basis ledger, persists every produced record to
// WAL stores and prints a final PnL report.
//
// Usage:
//
//	pnltrace --config config.yaml
//	pnltrace --tokens tokens.yaml --transfers transfers.ndjson
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vadiminshakov/pnltrace/config"
	"github.com/vadiminshakov/pnltrace/internal/domain"
	"github.com/vadiminshakov/pnltrace/internal/oracle"
	"github.com/vadiminshakov/pnltrace/internal/registry"
	"github.com/vadiminshakov/pnltrace/internal/report"
	"github.com/vadiminshakov/pnltrace/internal/services/incentives"
	"github.com/vadiminshakov/pnltrace/internal/services/ledger"
	"github.com/vadiminshakov/pnltrace/internal/services/lineitem"
	"github.com/vadiminshakov/pnltrace/internal/services/processor"
	"github.com/vadiminshakov/pnltrace/internal/storage"
	"github.com/vadiminshakov/pnltrace/pkg/retrier"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	tokens, err := registry.Load(cfg.TokensFile)
	if err != nil {
		logger.Fatal("failed to load asset registry", zap.Error(err))
	}

	observations := oracle.New()
	if cfg.OracleFile != "" {
		observations, err = oracle.Load(cfg.OracleFile)
		if err != nil {
			logger.Fatal("failed to load oracle observations", zap.Error(err))
		}
	}

	// WAL directories may sit on slow or contended storage; retry opening.
	sinks, err := retrier.DoWithData(retrier.New(), context.Background(), func(ctx context.Context) (*storage.Sinks, error) {
		return storage.NewSinks(cfg.WALDir)
	})
	if err != nil {
		logger.Fatal("failed to open record stores", zap.Error(err))
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error("failed to close record stores", zap.Error(err))
		}
	}()

	proc := processor.New(
		tokens,
		lineitem.NewSynthesizer(tokens, observations, logger),
		ledger.New(observations, logger),
		incentives.NewTracker(tokens, observations, logger),
		sinks,
		logger,
	)
	logger.Info("starting replay", zap.String("run", proc.RunID()), zap.String("input", cfg.TransfersFile))

	processed, failed, err := replay(proc, cfg.TransfersFile, logger)
	if err != nil {
		logger.Fatal("replay aborted", zap.Error(err))
	}
	logger.Info("replay finished", zap.Int("processed", processed), zap.Int("failed", failed))

	summary := report.NewBuilder(tokens).Build(latestSnapshots(proc))
	for i := 0; i < len(summary.Positions); {
		if summary.Positions[i].Balance.Abs().LessThan(cfg.ReportMinBalance) {
			summary.Positions = append(summary.Positions[:i], summary.Positions[i+1:]...)
			continue
		}
		i++
	}
	fmt.Print(summary.String())
}

// replay feeds the processor one transaction per input line. A failed
// transaction is logged and skipped; the ledger never observes its partial
// state.
func replay(proc *processor.Processor, path string, logger *zap.Logger) (processed, failed int, _ error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var txn domain.Txn
		if err := json.Unmarshal(line, &txn); err != nil {
			return processed, failed, err
		}

		result, err := proc.ProcessTransaction(&txn)
		if err != nil {
			failed++
			logger.Error("transaction skipped", zap.String("tx", txn.Hash.Hex()), zap.Error(err))
			continue
		}

		processed++
		if len(result.Unbundled) > 0 {
			logger.Warn("unbundled transfers",
				zap.String("tx", result.TxHash),
				zap.Int("count", len(result.Unbundled)))
		}
	}

	return processed, failed, scanner.Err()
}

func latestSnapshots(proc *processor.Processor) []*domain.BalanceSnapshot {
	return proc.Arena().LatestAll()
}
