package output

import (
	"fmt"
	"time"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

// pattern: Functional Core

// Report is command-level output data that can be rendered in human or JSON mode.
type Report struct {
	CommandName string
	DryRun      bool
	Counts      contracts.AggregateCounts
	Issues      []contracts.PerIssueResult
}

func BuildEnvelope(report Report, duration time.Duration) (contracts.CommandEnvelope, error) {
	env := contracts.CommandEnvelope{
		EnvelopeVersion: contracts.JSONEnvelopeVersionV1,
		Command: contracts.CommandMeta{
			Name:       report.CommandName,
			DurationMS: duration.Milliseconds(),
			DryRun:     report.DryRun,
		},
		Counts: report.Counts,
		Issues: report.Issues,
	}

	if err := contracts.ValidateEnvelopeBasics(env); err != nil {
		return contracts.CommandEnvelope{}, fmt.Errorf("failed to build command envelope: %w", err)
	}

	return env, nil
}

// Merge folds two reports into one, summing counts and concatenating
// per-issue results in order. Watch aggregates its tick runs with it.
func Merge(left Report, right Report) Report {
	merged := Report{
		CommandName: left.CommandName,
		DryRun:      left.DryRun,
		Counts:      mergeCounts(left.Counts, right.Counts),
		Issues:      append(append(make([]contracts.PerIssueResult, 0, len(left.Issues)+len(right.Issues)), left.Issues...), right.Issues...),
	}
	if merged.CommandName == "" {
		merged.CommandName = right.CommandName
		merged.DryRun = right.DryRun
	}
	return merged
}

func mergeCounts(left, right contracts.AggregateCounts) contracts.AggregateCounts {
	return contracts.AggregateCounts{
		Processed: left.Processed + right.Processed,
		Created:   left.Created + right.Created,
		Updated:   left.Updated + right.Updated,
		Skipped:   left.Skipped + right.Skipped,
		Warnings:  left.Warnings + right.Warnings,
		Errors:    left.Errors + right.Errors,
	}
}

func ResolveExitCode(report Report, fatalErr error) contracts.ExitCode {
	return contracts.ResolveExitCode(report.Counts, fatalErr != nil)
}
