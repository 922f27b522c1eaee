package middleware

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/lock"
)

func newTestLocker(t *testing.T) (lock.Locker, string) {
	t.Helper()
	lockPath := filepath.Join(t.TempDir(), ".bridge", "lock")
	return lock.NewFileLock(lockPath, lock.Options{
		AcquireTimeout: 500 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	}), lockPath
}

func TestWithCommandLockMutatingCommandAcquiresAndReleases(t *testing.T) {
	t.Parallel()

	locker, lockPath := newTestLocker(t)

	runner := WithCommandLock(contracts.CommandSync, locker, nil, func(ctx context.Context) error {
		if _, err := os.Stat(lockPath); err != nil {
			t.Fatalf("expected lock file while running, got: %v", err)
		}
		return nil
	})

	if err := runner(context.Background()); err != nil {
		t.Fatalf("runner failed: %v", err)
	}

	if _, err := os.Stat(lockPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected lock file to be removed, got: %v", err)
	}
}

func TestWithCommandLockReadOnlyCommandSkipsLock(t *testing.T) {
	t.Parallel()

	locker, lockPath := newTestLocker(t)

	runner := WithCommandLock(contracts.CommandCheck, locker, nil, func(ctx context.Context) error {
		if _, err := os.Stat(lockPath); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected no lock acquisition for read-only command, got: %v", err)
		}
		return nil
	})

	if err := runner(context.Background()); err != nil {
		t.Fatalf("runner failed: %v", err)
	}
}

func TestWithCommandLockSurfacesAcquireFailure(t *testing.T) {
	t.Parallel()

	locker, _ := newTestLocker(t)

	lease, err := locker.Acquire(context.Background())
	if err != nil {
		t.Fatalf("primary acquire failed: %v", err)
	}
	defer lease.Release()

	runner := WithCommandLock(contracts.CommandWatch, locker, nil, func(ctx context.Context) error {
		t.Fatalf("runner must not execute without the lock")
		return nil
	})

	err = runner(context.Background())
	if !errors.Is(err, lock.ErrAcquireTimeout) {
		t.Fatalf("expected acquire timeout, got: %v", err)
	}
	if !strings.Contains(err.Error(), "failed to acquire command lock") {
		t.Fatalf("error must carry the lock prefix: %q", err)
	}
}
