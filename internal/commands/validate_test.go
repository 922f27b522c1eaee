package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/jira"
)

func TestRunValidateOfflineAcceptsWorkspace(t *testing.T) {
	t.Parallel()

	workDir := writeWorkspace(t)

	report, err := RunValidate(context.Background(), workDir, ValidateOptions{})
	if err != nil {
		t.Fatalf("RunValidate failed: %v", err)
	}

	if report.Counts.Processed != 4 || report.Counts.Errors != 0 {
		t.Fatalf("counts mismatch: %+v", report.Counts)
	}
	if report.Issues[0].Key != "summary" || report.Issues[0].Action != "rule" {
		t.Fatalf("unexpected first rule entry: %+v", report.Issues[0])
	}
	if report.Issues[2].Key != "customer_issue_id" {
		t.Fatalf("metadata rule must be labeled by type: %+v", report.Issues[2])
	}
	if !strings.Contains(report.Issues[1].Messages[0].Text, "strategy=MAPPED_SYNC") {
		t.Fatalf("rule description mismatch: %+v", report.Issues[1].Messages)
	}
}

func TestRunValidateRejectsBrokenMappingTable(t *testing.T) {
	t.Parallel()

	workDir := writeWorkspace(t)
	broken := `[{"kind": "custom-field", "strategy": "SYNC_METADATA", "metadataType": "customer_issue_id", "targetFieldId": "customfield_1"},
	            {"kind": "custom-field", "strategy": "SYNC_METADATA", "metadataType": "customer_issue_id", "targetFieldId": "customfield_2"}]`
	if err := os.WriteFile(filepath.Join(workDir, "field_mapping.json"), []byte(broken), 0o644); err != nil {
		t.Fatalf("failed to overwrite mapping table: %v", err)
	}

	_, err := RunValidate(context.Background(), workDir, ValidateOptions{})
	if err == nil || !strings.Contains(err.Error(), "failed to load mapping table") {
		t.Fatalf("expected mapping load failure, got %v", err)
	}
}

func TestRunValidateLiveFlagsUnknownFields(t *testing.T) {
	t.Parallel()

	workDir := writeWorkspace(t)
	source := &fakeAdapter{fields: []jira.FieldDefinition{
		{ID: "customfield_20001", Name: "Severity", Custom: true},
	}}
	target := &fakeAdapter{fields: []jira.FieldDefinition{
		{ID: "customfield_30001", Name: "Customer Issue ID", Custom: true},
	}}

	report, err := RunValidate(context.Background(), workDir, ValidateOptions{Live: true, Source: source, Target: target})
	if err != nil {
		t.Fatalf("RunValidate failed: %v", err)
	}

	if report.Counts.Errors != 1 {
		t.Fatalf("expected exactly one unknown-field rule, got %+v", report.Counts)
	}

	var failed *contracts.PerIssueResult
	for i := range report.Issues {
		if report.Issues[i].Status == contracts.PerIssueStatusError {
			failed = &report.Issues[i]
		}
	}
	if failed == nil {
		t.Fatalf("expected a failed rule entry")
	}
	if failed.Key != "last_sync_time" {
		t.Fatalf("unexpected failed rule: %+v", failed)
	}
	found := false
	for _, message := range failed.Messages {
		if message.ReasonCode == contracts.ReasonCodeFieldUnknown && strings.Contains(message.Text, "customfield_30002 on target site") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing field_unknown diagnostic: %+v", failed.Messages)
	}
}

func TestRunValidateLivePassesWhenCatalogsMatch(t *testing.T) {
	t.Parallel()

	workDir := writeWorkspace(t)
	source := &fakeAdapter{fields: []jira.FieldDefinition{
		{ID: "customfield_20001", Name: "Severity", Custom: true},
	}}
	target := &fakeAdapter{fields: []jira.FieldDefinition{
		{ID: "customfield_30001", Name: "Customer Issue ID", Custom: true},
		{ID: "customfield_30002", Name: "Last Sync", Custom: true},
	}}

	report, err := RunValidate(context.Background(), workDir, ValidateOptions{Live: true, Source: source, Target: target})
	if err != nil {
		t.Fatalf("RunValidate failed: %v", err)
	}
	if report.Counts.Errors != 0 {
		t.Fatalf("expected clean live validation, got %+v", report.Counts)
	}
}
