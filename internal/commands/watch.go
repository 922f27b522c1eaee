package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/output"
)

type WatchOptions struct {
	Schedule string
	Sync     SyncOptions
}

// RunWatch runs the sync on a cron schedule until the context is
// canceled. Ticks never overlap: while a run is still active the next
// tick is skipped and logged. The returned report aggregates every
// completed tick; a failed tick counts one error and the next tick
// retries from scratch.
func RunWatch(ctx context.Context, workDir string, options WatchOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandWatch), DryRun: options.Sync.DryRun}

	schedule := strings.TrimSpace(options.Schedule)
	if schedule == "" {
		return report, fmt.Errorf("--schedule is required")
	}

	logger := options.Sync.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	eng, err := buildSyncEngine(workDir, options.Sync)
	if err != nil {
		return report, err
	}

	var (
		mu      sync.Mutex
		running atomic.Bool
	)
	aggregate := report

	runner := cron.New()
	_, err = runner.AddFunc(schedule, func() {
		if !running.CompareAndSwap(false, true) {
			logger.Warn("sync tick skipped, previous run still active",
				zap.String("reason_code", string(contracts.ReasonCodeTickSkipped)))
			return
		}
		defer running.Store(false)

		result, tickErr := eng.Run(ctx)
		if errors.Is(tickErr, context.Canceled) || errors.Is(tickErr, context.DeadlineExceeded) {
			// Shutdown interrupted the tick; drop its partial result.
			return
		}

		mu.Lock()
		aggregate = output.Merge(aggregate, output.Report{Counts: result.Counts, Issues: result.Issues})
		if tickErr != nil {
			aggregate.Counts.Errors++
		}
		mu.Unlock()

		if tickErr != nil {
			logger.Error("sync tick failed", zap.Error(tickErr))
		}
	})
	if err != nil {
		return report, fmt.Errorf("invalid --schedule %q: %w", schedule, err)
	}

	logger.Info("watch started", zap.String("schedule", schedule))
	runner.Start()
	<-ctx.Done()
	<-runner.Stop().Done()

	mu.Lock()
	defer mu.Unlock()
	logger.Info("watch stopped",
		zap.Int("processed", aggregate.Counts.Processed),
		zap.Int("errors", aggregate.Counts.Errors))
	return aggregate, nil
}
