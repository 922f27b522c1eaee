package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/jira"
)

func TestRunCheckReportsAllProbes(t *testing.T) {
	t.Parallel()

	workDir := writeWorkspace(t)
	source := &fakeAdapter{}
	target := &fakeAdapter{}

	report, err := RunCheck(context.Background(), workDir, CheckOptions{Source: source, Target: target})
	if err != nil {
		t.Fatalf("RunCheck failed: %v", err)
	}

	if report.Counts.Processed != 4 || report.Counts.Errors != 0 {
		t.Fatalf("counts mismatch: %+v", report.Counts)
	}
	if len(report.Issues) != 4 {
		t.Fatalf("expected 4 probe results, got %d", len(report.Issues))
	}
	if report.Issues[0].Key != "source" || report.Issues[0].Action != "auth-check" {
		t.Fatalf("unexpected first probe: %+v", report.Issues[0])
	}
	if !strings.Contains(report.Issues[0].Messages[0].Text, "Bridge Bot") {
		t.Fatalf("auth probe must name the account: %+v", report.Issues[0].Messages)
	}
	if !strings.Contains(report.Issues[1].Messages[0].Text, "CUX") {
		t.Fatalf("project probe must name the project: %+v", report.Issues[1].Messages)
	}
}

func TestRunCheckFailsWhenOneProbeFails(t *testing.T) {
	t.Parallel()

	workDir := writeWorkspace(t)
	source := &fakeAdapter{}
	target := &fakeAdapter{userErr: &jira.Error{
		Code:       jira.ErrorCodeAuthFailed,
		ReasonCode: contracts.ReasonCodeAuthFailed,
		StatusCode: 401,
		Message:    "jira authentication failed with status 401: unauthorized",
	}}

	report, err := RunCheck(context.Background(), workDir, CheckOptions{Source: source, Target: target})
	if err == nil {
		t.Fatalf("expected check failure")
	}
	if !strings.Contains(err.Error(), "1 of 4") {
		t.Fatalf("error must count failed probes: %q", err)
	}

	if report.Counts.Processed != 4 || report.Counts.Errors != 1 {
		t.Fatalf("counts mismatch: %+v", report.Counts)
	}

	var failed *contracts.PerIssueResult
	for i := range report.Issues {
		if report.Issues[i].Status == contracts.PerIssueStatusError {
			failed = &report.Issues[i]
		}
	}
	if failed == nil {
		t.Fatalf("expected one failed probe in the report")
	}
	if failed.Key != "target" || failed.Messages[0].ReasonCode != contracts.ReasonCodeAuthFailed {
		t.Fatalf("unexpected failed probe: %+v", failed)
	}
}

func TestRunCheckMissingConfigIsFatal(t *testing.T) {
	t.Parallel()

	_, err := RunCheck(context.Background(), t.TempDir(), CheckOptions{Source: &fakeAdapter{}, Target: &fakeAdapter{}})
	if err == nil {
		t.Fatalf("expected config load failure")
	}
	if !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("unexpected error: %q", err)
	}
}
