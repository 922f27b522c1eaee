package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pweiskircher/jira-bridge/internal/issue"
)

func TestRunWatchRequiresSchedule(t *testing.T) {
	t.Parallel()

	_, err := RunWatch(context.Background(), t.TempDir(), WatchOptions{})
	if err == nil || !strings.Contains(err.Error(), "--schedule is required") {
		t.Fatalf("err = %v, want missing schedule failure", err)
	}
}

func TestRunWatchRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	workDir := writeWorkspace(t)
	_, err := RunWatch(context.Background(), workDir, WatchOptions{
		Schedule: "not-a-cron",
		Sync:     SyncOptions{Source: &fakeAdapter{}, Target: &fakeAdapter{}},
	})
	if err == nil || !strings.Contains(err.Error(), `invalid --schedule "not-a-cron"`) {
		t.Fatalf("err = %v, want schedule parse failure", err)
	}
}

func TestRunWatchMissingConfigFails(t *testing.T) {
	t.Parallel()

	_, err := RunWatch(context.Background(), t.TempDir(), WatchOptions{
		Schedule: "@every 1s",
		Sync:     SyncOptions{Source: &fakeAdapter{}, Target: &fakeAdapter{}},
	})
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("err = %v, want config load failure", err)
	}
}

func TestRunWatchAggregatesTicksUntilCanceled(t *testing.T) {
	t.Parallel()

	workDir := writeWorkspace(t)
	source := &fakeAdapter{issues: []issue.Issue{sourceFixtureIssue("CUX-7")}}
	target := &fakeAdapter{}

	// The cron runner rounds sub-second intervals up to one second, so
	// the deadline leaves room for a full tick plus scheduler jitter.
	ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
	defer cancel()

	report, err := RunWatch(ctx, workDir, WatchOptions{
		Schedule: "@every 1s",
		Sync:     SyncOptions{Source: source, Target: target},
	})
	if err != nil {
		t.Fatalf("RunWatch failed: %v", err)
	}

	if report.CommandName != "watch" {
		t.Fatalf("command name = %q, want %q", report.CommandName, "watch")
	}
	if report.Counts.Processed < 1 {
		t.Fatalf("processed = %d, want at least one completed tick", report.Counts.Processed)
	}
	if report.Counts.Errors != 0 {
		t.Fatalf("errors = %d, want 0", report.Counts.Errors)
	}
	if len(target.created) < 1 {
		t.Fatalf("target issues created = %d, want at least 1", len(target.created))
	}
}
