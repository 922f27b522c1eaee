package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

// ErrAcquireTimeout is returned when another bridge instance holds the
// lock for the whole acquire window.
var ErrAcquireTimeout = errors.New("timed out waiting for the bridge lock")

// PathForStagingDir returns the lock file path for a staging root. The
// file sits beside the staging tree, so sync and watch runs configured
// with the same tree contend on the same lock no matter which config
// file named it.
func PathForStagingDir(stagingDir string) string {
	if stagingDir == "" {
		return contracts.DefaultLockFilePath
	}
	return filepath.Join(filepath.Dir(stagingDir), "lock")
}

// Lease is a held lock. Release is idempotent.
type Lease interface {
	Release() error
	RecoveredStale() bool
}

// Locker hands out exclusive leases on one staging tree.
type Locker interface {
	Acquire(ctx context.Context) (Lease, error)
}

type Options struct {
	StaleAfter     time.Duration
	AcquireTimeout time.Duration
	PollInterval   time.Duration
	Now            func() time.Time
}

// FileLock serializes mutating bridge runs through an O_EXCL-created
// file. A crashed run leaves its file behind; the file's age decides
// when a later run may take the lease over.
type FileLock struct {
	path           string
	staleAfter     time.Duration
	acquireTimeout time.Duration
	pollInterval   time.Duration
	now            func() time.Time
}

type fileLease struct {
	path      string
	recovered bool
	release   sync.Once
}

// holderInfo is written into the lock file for operators diagnosing a
// stuck bridge. Staleness is judged by file mtime, not by this payload,
// so hand-edited or truncated files still expire.
type holderInfo struct {
	PID        int    `json:"pid"`
	Host       string `json:"host,omitempty"`
	AcquiredAt string `json:"acquired_at"`
}

func NewFileLock(path string, options Options) *FileLock {
	lock := &FileLock{
		path:           path,
		staleAfter:     options.StaleAfter,
		acquireTimeout: options.AcquireTimeout,
		pollInterval:   options.PollInterval,
		now:            options.Now,
	}
	if lock.staleAfter <= 0 {
		lock.staleAfter = contracts.DefaultLockStaleAfter
	}
	if lock.acquireTimeout <= 0 {
		lock.acquireTimeout = contracts.DefaultLockAcquireTimeout
	}
	if lock.pollInterval <= 0 {
		lock.pollInterval = contracts.DefaultLockPollInterval
	}
	if lock.now == nil {
		lock.now = time.Now
	}
	return lock
}

// Acquire claims the lock, polling until it frees up, the context ends,
// or the acquire window closes. A leftover file older than the stale
// threshold is removed and claimed in the same pass; the lease reports
// that recovery so the caller can log it.
func (l *FileLock) Acquire(ctx context.Context) (Lease, error) {
	if l == nil {
		return nil, errors.New("lock is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, err
	}

	deadline := l.now().Add(l.acquireTimeout)
	recovered := false

	for {
		switch err := l.claim(); {
		case err == nil:
			return &fileLease{path: l.path, recovered: recovered}, nil
		case !errors.Is(err, os.ErrExist):
			return nil, err
		}

		if stolen, err := l.stealIfExpired(); err == nil && stolen {
			recovered = true
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !l.now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrAcquireTimeout, l.path)
		}
		if err := l.waitPoll(ctx); err != nil {
			return nil, err
		}
	}
}

// claim creates the lock file exclusively and records the holder.
func (l *FileLock) claim() error {
	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	host, _ := os.Hostname()
	encoded, err := json.Marshal(holderInfo{
		PID:        os.Getpid(),
		Host:       host,
		AcquiredAt: l.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	_, err = file.Write(append(encoded, '\n'))
	return err
}

// stealIfExpired removes the lock file once its mtime age passes the
// stale threshold. A concurrent removal by another contender counts as
// a successful steal; the next claim decides who actually wins.
func (l *FileLock) stealIfExpired() (bool, error) {
	info, err := os.Stat(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if l.now().Sub(info.ModTime()) <= l.staleAfter {
		return false, nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	return true, nil
}

func (l *FileLock) waitPoll(ctx context.Context) error {
	timer := time.NewTimer(l.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (lease *fileLease) RecoveredStale() bool {
	if lease == nil {
		return false
	}
	return lease.recovered
}

func (lease *fileLease) Release() error {
	if lease == nil {
		return nil
	}

	var releaseErr error
	lease.release.Do(func() {
		if err := os.Remove(lease.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			releaseErr = err
		}
	})
	return releaseErr
}
