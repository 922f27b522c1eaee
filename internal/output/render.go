package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

// pattern: Imperative Shell

// Write renders one command run. JSON mode owns stdout completely: the
// envelope is the only thing written there, and diagnostics go to
// stderr so automation can parse the stream unconditionally. Human mode
// prints the counts line and per-issue detail on success, and on a
// fatal error prints the diagnostic alone to stderr.
//
// A fatal error with a clean report still counts as one error so the
// envelope never reads as a success.
func Write(mode contracts.OutputMode, stdout io.Writer, stderr io.Writer, report Report, duration time.Duration, fatalErr error) error {
	normalized := report
	if fatalErr != nil && normalized.Counts.Errors == 0 {
		normalized.Counts.Errors = 1
	}

	switch mode {
	case contracts.OutputModeJSON:
		return writeJSON(stdout, stderr, normalized, duration, fatalErr)
	case contracts.OutputModeHuman:
		return writeHuman(stdout, stderr, normalized, fatalErr)
	default:
		return fmt.Errorf("unsupported output mode %q", mode)
	}
}

func writeJSON(stdout io.Writer, stderr io.Writer, report Report, duration time.Duration, fatalErr error) error {
	env, err := BuildEnvelope(report, duration)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(stdout).Encode(env); err != nil {
		return fmt.Errorf("failed to write JSON envelope: %w", err)
	}
	if fatalErr != nil {
		if _, err := fmt.Fprintln(stderr, FormatDiagnostic(fatalErr)); err != nil {
			return fmt.Errorf("failed to write diagnostics: %w", err)
		}
	}
	return nil
}

func writeHuman(stdout io.Writer, stderr io.Writer, report Report, fatalErr error) error {
	if fatalErr != nil {
		if _, err := fmt.Fprintln(stderr, FormatDiagnostic(fatalErr)); err != nil {
			return fmt.Errorf("failed to write diagnostics: %w", err)
		}
		return nil
	}

	counts := report.Counts
	_, err := fmt.Fprintf(
		stdout,
		"%s: processed=%d created=%d updated=%d skipped=%d warnings=%d errors=%d\n",
		report.CommandName,
		counts.Processed,
		counts.Created,
		counts.Updated,
		counts.Skipped,
		counts.Warnings,
		counts.Errors,
	)
	if err != nil {
		return fmt.Errorf("failed to write human output: %w", err)
	}

	for _, issue := range report.Issues {
		if err := writeIssueLines(stdout, issue); err != nil {
			return err
		}
	}
	return nil
}

func writeIssueLines(stdout io.Writer, issue contracts.PerIssueResult) error {
	if _, err := fmt.Fprintf(stdout, "- %s [%s] %s\n", issue.Key, issue.Status, issue.Action); err != nil {
		return fmt.Errorf("failed to write human output: %w", err)
	}

	for _, message := range issue.Messages {
		reason := ""
		if message.ReasonCode != "" {
			reason = " (" + string(message.ReasonCode) + ")"
		}
		if _, err := fmt.Fprintf(stdout, "  - %s%s: %s\n", message.Level, reason, message.Text); err != nil {
			return fmt.Errorf("failed to write human output: %w", err)
		}
	}
	return nil
}

// FormatDiagnostic shapes a fatal error for the stderr diagnostic line.
func FormatDiagnostic(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "failed to execute command"
	}
	if strings.HasPrefix(msg, "failed to ") {
		return msg
	}
	return "failed to execute command: " + msg
}
