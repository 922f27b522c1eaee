package middleware

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/lock"
)

type Runner func(ctx context.Context) error

// WithCommandLock wraps next in the single-instance lock for mutating
// commands. Read-only commands pass through unwrapped. Recovering a
// stale lease left behind by a crashed run is logged, not fatal.
func WithCommandLock(command contracts.CommandName, locker lock.Locker, logger *zap.Logger, next Runner) Runner {
	if next == nil {
		return nil
	}
	if locker == nil || !contracts.RequiresLock(command) {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context) (runErr error) {
		lease, err := locker.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire command lock: %w", err)
		}
		if lease.RecoveredStale() {
			logger.Warn("stale lock recovered",
				zap.String("command", string(command)),
				zap.String("reason_code", string(contracts.ReasonCodeLockStaleRecovered)),
			)
		}

		defer func() {
			if releaseErr := lease.Release(); releaseErr != nil {
				if runErr == nil {
					runErr = releaseErr
					return
				}
				runErr = errors.Join(runErr, releaseErr)
			}
		}()

		return next(ctx)
	}
}
