package contracts

import "errors"

const JSONEnvelopeVersionV1 = "1"

type OutputMode string

const (
	OutputModeHuman OutputMode = "human"
	OutputModeJSON  OutputMode = "json"
)

// StreamContract states which stream owns what in each output mode.
// Automation consumes stdout; everything meant for a person goes to stderr.
type StreamContract struct {
	StdoutRule string
	StderrRule string
}

var OutputStreamContracts = map[OutputMode]StreamContract{
	OutputModeJSON: {
		StdoutRule: "stdout carries exactly one JSON envelope object and nothing else",
		StderrRule: "stderr may carry diagnostics and logs, never envelope fragments",
	},
	OutputModeHuman: {
		StdoutRule: "stdout carries the human-readable run summary",
		StderrRule: "stderr carries warnings, errors, and diagnostics",
	},
}

type ExitCode int

const (
	ExitCodeSuccess ExitCode = 0
	ExitCodeFatal   ExitCode = 1
	ExitCodePartial ExitCode = 2
)

// ExitCodeMeaning freezes the CLI matrix semantics.
var ExitCodeMeaning = map[ExitCode]string{
	ExitCodeSuccess: "success with no errors or warnings",
	ExitCodePartial: "partial success with per-issue errors and/or warnings, no fatal command failure",
	ExitCodeFatal:   "fatal command failure (setup/config/auth/lock/transport)",
}

// CommandEnvelope is the single JSON object a command writes to stdout. One
// run produces one envelope regardless of how many issues the pass touched.
type CommandEnvelope struct {
	EnvelopeVersion string           `json:"envelope_version"`
	Command         CommandMeta      `json:"command"`
	Counts          AggregateCounts  `json:"counts"`
	Issues          []PerIssueResult `json:"issues,omitempty"`
}

type CommandMeta struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	DryRun     bool   `json:"dry_run"`
}

// AggregateCounts totals the run. Processed counts issues examined; created
// and updated count remote writes that actually happened.
type AggregateCounts struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Warnings  int `json:"warnings"`
	Errors    int `json:"errors"`
}

type PerIssueStatus string

const (
	PerIssueStatusSuccess PerIssueStatus = "success"
	PerIssueStatusWarning PerIssueStatus = "warning"
	PerIssueStatusError   PerIssueStatus = "error"
	PerIssueStatusSkipped PerIssueStatus = "skipped"
)

// PerIssueResult keys on the source site's issue key even when the write
// landed on the target.
type PerIssueResult struct {
	Key      string         `json:"key"`
	Action   string         `json:"action"`
	Status   PerIssueStatus `json:"status"`
	Messages []IssueMessage `json:"messages,omitempty"`
}

type IssueMessage struct {
	Level      string     `json:"level"`
	ReasonCode ReasonCode `json:"reason_code,omitempty"`
	Text       string     `json:"text"`
}

func ValidateEnvelopeBasics(env CommandEnvelope) error {
	if env.EnvelopeVersion != JSONEnvelopeVersionV1 {
		return errors.New("unsupported envelope_version")
	}
	if env.Command.Name == "" {
		return errors.New("command name is required")
	}
	return nil
}

func ResolveExitCode(counts AggregateCounts, fatalErr bool) ExitCode {
	if fatalErr {
		return ExitCodeFatal
	}
	if counts.Errors > 0 || counts.Warnings > 0 {
		return ExitCodePartial
	}
	return ExitCodeSuccess
}
