// pattern: Imperative Shell
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pweiskircher/jira-bridge/internal/conflict"
	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/issue"
	"github.com/pweiskircher/jira-bridge/internal/jira"
	"github.com/pweiskircher/jira-bridge/internal/sync/attach"
	"github.com/pweiskircher/jira-bridge/internal/sync/payload"
)

// AttachmentMerger reconciles the attachment sets of one issue pair.
type AttachmentMerger interface {
	Merge(ctx context.Context, source issue.Issue, targetKey string) (attach.MergeStats, error)
}

type Options struct {
	Source jira.Adapter
	Target jira.Adapter
	Merger AttachmentMerger
	Rules  []contracts.FieldMappingRule

	SourceProjectKey string
	TargetProjectKey string
	IssueTypes       []string
	CreateIssueType  string

	PageSize int

	// RecentWindow bounds the source query, e.g. "-4h". DebugIssueKey
	// narrows the run to one source issue and implies a one-day window.
	RecentWindow  string
	DebugIssueKey string

	DryRun bool
	Logger *zap.Logger
	Now    func() time.Time
}

// Engine drives one full sync run: fetch both sides, match by the
// cross-reference marker, create or update, then merge attachments.
// Remote failures on one issue never stop the loop; the next run
// retries naturally.
type Engine struct {
	source jira.Adapter
	target jira.Adapter
	merger AttachmentMerger
	rules  []contracts.FieldMappingRule

	sourceProjectKey string
	targetProjectKey string
	issueTypes       []string
	createIssueType  string

	pageSize      int
	recentWindow  string
	debugIssueKey string

	dryRun bool
	logger *zap.Logger
	now    func() time.Time
}

type Result struct {
	Counts contracts.AggregateCounts
	Issues []contracts.PerIssueResult
}

func New(options Options) *Engine {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	createIssueType := options.CreateIssueType
	if createIssueType == "" {
		createIssueType = contracts.DefaultCreateIssueType
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = contracts.DefaultSearchPageSize
	}
	recentWindow := options.RecentWindow
	if recentWindow == "" && options.DebugIssueKey != "" {
		recentWindow = contracts.DebugRecentWindow
	}

	return &Engine{
		source:           options.Source,
		target:           options.Target,
		merger:           options.Merger,
		rules:            options.Rules,
		sourceProjectKey: options.SourceProjectKey,
		targetProjectKey: options.TargetProjectKey,
		issueTypes:       options.IssueTypes,
		createIssueType:  createIssueType,
		pageSize:         pageSize,
		recentWindow:     recentWindow,
		debugIssueKey:    options.DebugIssueKey,
		dryRun:           options.DryRun,
		logger:           logger,
		now:              now,
	}
}

// Run executes one sync pass. Setup failures (missing cross-reference
// rule, failed connection probes, failed fetches) abort before any
// mutation; everything after that is recovered per issue.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if e.source == nil || e.target == nil {
		return Result{}, fmt.Errorf("both site adapters are required")
	}
	if e.merger == nil {
		return Result{}, fmt.Errorf("attachment merger is not configured")
	}

	crossRef, ok := contracts.CustomerIssueIDRule(e.rules)
	if !ok {
		return Result{}, fmt.Errorf("mapping table defines no customer_issue_id rule")
	}
	markerRule, hasMarker := contracts.LastSyncTimeRule(e.rules)

	if _, err := e.source.Myself(ctx); err != nil {
		return Result{}, fmt.Errorf("source connection check failed: %w", err)
	}
	if _, err := e.target.Myself(ctx); err != nil {
		return Result{}, fmt.Errorf("target connection check failed: %w", err)
	}

	sourceJQL := contracts.SourceSearchJQL(contracts.SourceSearchQuery{
		ProjectKey:   e.sourceProjectKey,
		IssueTypes:   e.issueTypes,
		RecentWindow: e.recentWindow,
		Key:          e.debugIssueKey,
	})
	sourceIssues, err := e.source.SearchIssues(ctx, jira.SearchRequest{JQL: sourceJQL, PageSize: e.pageSize})
	if err != nil {
		return Result{}, fmt.Errorf("source issue fetch failed: %w", err)
	}

	targetJQL := contracts.TargetSearchJQL(e.targetProjectKey, crossRef.TargetFieldID, crossRef.TargetFieldName)
	targetIssues, err := e.target.SearchIssues(ctx, jira.SearchRequest{JQL: targetJQL, PageSize: e.pageSize})
	if err != nil {
		return Result{}, fmt.Errorf("target issue fetch failed: %w", err)
	}

	index := crossReferenceIndex(targetIssues, crossRef.TargetFieldID)
	e.logger.Info("sync run starting",
		zap.Int("source_issues", len(sourceIssues)),
		zap.Int("linked_targets", len(index)),
		zap.Bool("dry_run", e.dryRun))

	result := Result{}
	for _, source := range sourceIssues {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var perIssue contracts.PerIssueResult
		if target, matched := index[source.Key]; matched {
			perIssue = e.syncMatched(ctx, source, target, markerRule, hasMarker)
		} else {
			perIssue = e.createCounterpart(ctx, source)
		}
		result.Issues = append(result.Issues, perIssue)
		tally(&result.Counts, perIssue)
	}

	e.logger.Info("sync run finished",
		zap.Int("processed", result.Counts.Processed),
		zap.Int("created", result.Counts.Created),
		zap.Int("updated", result.Counts.Updated),
		zap.Int("skipped", result.Counts.Skipped),
		zap.Int("errors", result.Counts.Errors))
	return result, nil
}

// createCounterpart handles a source issue with no linked target: create,
// then apply each deferred metadata field as its own update so one
// rejected field never blocks the others, then merge attachments.
func (e *Engine) createCounterpart(ctx context.Context, source issue.Issue) contracts.PerIssueResult {
	build := payload.BuildCreate(payload.CreateInput{
		Source:           source,
		TargetProjectKey: e.targetProjectKey,
		IssueType:        e.createIssueType,
		Rules:            e.rules,
		Now:              e.now(),
	})

	if e.dryRun {
		e.logger.Info("dry run: would create issue",
			zap.String("source", source.Key),
			zap.Int("fields", len(build.Fields)),
			zap.Int("deferred_fields", len(build.Deferred)))
		return contracts.PerIssueResult{
			Key:    source.Key,
			Action: "create",
			Status: contracts.PerIssueStatusSkipped,
			Messages: []contracts.IssueMessage{{
				Level:      "info",
				ReasonCode: contracts.ReasonCodeDryRunNoWrite,
				Text:       "dry-run: skipped issue create",
			}},
		}
	}

	created, err := e.target.CreateIssue(ctx, build.Fields)
	if err != nil {
		e.logger.Error("issue create failed",
			zap.String("source", source.Key), zap.Error(err))
		return contracts.PerIssueResult{
			Key:    source.Key,
			Action: "create-error",
			Status: contracts.PerIssueStatusError,
			Messages: []contracts.IssueMessage{{
				Level:      "error",
				ReasonCode: reasonFromError(err, contracts.ReasonCodeCreateFailed),
				Text:       "failed to create issue: " + strings.TrimSpace(err.Error()),
			}},
		}
	}
	e.logger.Info("issue created",
		zap.String("source", source.Key), zap.String("target", created.Key))

	status := contracts.PerIssueStatusSuccess
	messages := []contracts.IssueMessage{{Level: "info", Text: "created " + created.Key}}

	for _, deferred := range build.Deferred {
		fields := issue.Fields{deferred.FieldID: deferred.Value}
		if err := e.target.UpdateIssue(ctx, created.Key, fields); err != nil {
			e.logger.Error("metadata field update failed",
				zap.String("target", created.Key),
				zap.String("field", deferred.FieldID),
				zap.Error(err))
			messages = append(messages, contracts.IssueMessage{
				Level:      "warning",
				ReasonCode: contracts.ReasonCodeMetadataFieldRejected,
				Text:       "field " + deferred.FieldID + " rejected: " + strings.TrimSpace(err.Error()),
			})
			status = contracts.PerIssueStatusWarning
		}
	}

	e.mergeAttachments(ctx, source, created.Key, &messages, &status)
	return contracts.PerIssueResult{Key: source.Key, Action: "created", Status: status, Messages: messages}
}

// syncMatched handles a source issue with a linked target: resolve the
// flow direction from the updated timestamps, apply the field update to
// the losing side, then merge attachments regardless of the field
// outcome.
func (e *Engine) syncMatched(ctx context.Context, source issue.Issue, target issue.Issue, markerRule contracts.FieldMappingRule, hasMarker bool) contracts.PerIssueResult {
	lastSync := ""
	if hasMarker {
		lastSync, _ = target.Field(markerRule.TargetFieldID).ExtractText()
	}

	resolution := conflict.Resolve(source.UpdatedRaw(), target.UpdatedRaw(), lastSync)
	switch resolution.Outcome {
	case conflict.OutcomeAlreadySynced:
		return e.skipFields(ctx, source, target.Key, contracts.ReasonCodeAlreadySynced, "both sides unchanged since last sync")
	case conflict.OutcomeTie:
		return e.skipFields(ctx, source, target.Key, contracts.ReasonCodeTimestampTie, "updated timestamps tie, fields left untouched")
	}

	direction, _ := resolution.Direction.RuleDirection()
	fields := payload.BuildUpdate(payload.UpdateInput{
		Source:    source,
		Target:    target,
		Direction: direction,
		Rules:     e.rules,
		Now:       e.now(),
	})
	if len(fields) == 0 {
		return e.skipFields(ctx, source, target.Key, contracts.ReasonCodeNoFieldsResolved, "no fields resolved for direction "+string(direction))
	}

	if e.dryRun {
		e.logger.Info("dry run: would update issue",
			zap.String("source", source.Key),
			zap.String("target", target.Key),
			zap.String("direction", string(direction)),
			zap.Int("fields", len(fields)))
		messages := []contracts.IssueMessage{{
			Level:      "info",
			ReasonCode: contracts.ReasonCodeDryRunNoWrite,
			Text:       "dry-run: skipped issue update",
		}}
		status := contracts.PerIssueStatusSkipped
		e.mergeAttachments(ctx, source, target.Key, &messages, &status)
		return contracts.PerIssueResult{Key: source.Key, Action: "update", Status: status, Messages: messages}
	}

	writeKey, writer := target.Key, e.target
	if direction == contracts.SyncDirectionTargetToSource {
		writeKey, writer = source.Key, e.source
	}

	if err := writer.UpdateIssue(ctx, writeKey, fields); err != nil {
		e.logger.Error("issue update failed",
			zap.String("issue", writeKey),
			zap.String("direction", string(direction)),
			zap.Error(err))
		messages := []contracts.IssueMessage{{
			Level:      "error",
			ReasonCode: reasonFromError(err, contracts.ReasonCodeUpdateFailed),
			Text:       "failed to update " + writeKey + ": " + strings.TrimSpace(err.Error()),
		}}
		status := contracts.PerIssueStatusError
		e.mergeAttachments(ctx, source, target.Key, &messages, &status)
		return contracts.PerIssueResult{Key: source.Key, Action: "update-error", Status: status, Messages: messages}
	}
	e.logger.Info("issue updated",
		zap.String("issue", writeKey),
		zap.String("direction", string(direction)),
		zap.Int("fields", len(fields)))

	status := contracts.PerIssueStatusSuccess
	messages := []contracts.IssueMessage{{Level: "info", Text: fmt.Sprintf("applied %d fields to %s", len(fields), writeKey)}}

	// A source-bound update leaves the target untouched, so the sync
	// marker lands in its own follow-up write.
	if direction == contracts.SyncDirectionTargetToSource {
		if fieldID, value, ok := payload.LastSyncMarker(e.rules, e.now()); ok {
			if err := e.target.UpdateIssue(ctx, target.Key, issue.Fields{fieldID: value}); err != nil {
				e.logger.Error("last-sync marker update failed",
					zap.String("target", target.Key),
					zap.String("field", fieldID),
					zap.Error(err))
				messages = append(messages, contracts.IssueMessage{
					Level:      "warning",
					ReasonCode: contracts.ReasonCodeMetadataFieldRejected,
					Text:       "last-sync marker rejected: " + strings.TrimSpace(err.Error()),
				})
				status = contracts.PerIssueStatusWarning
			}
		}
	}

	e.mergeAttachments(ctx, source, target.Key, &messages, &status)
	return contracts.PerIssueResult{Key: source.Key, Action: "updated", Status: status, Messages: messages}
}

// skipFields records a no-field-flow outcome but still merges
// attachments; files move even when fields do not.
func (e *Engine) skipFields(ctx context.Context, source issue.Issue, targetKey string, reason contracts.ReasonCode, text string) contracts.PerIssueResult {
	e.logger.Debug("field sync skipped",
		zap.String("source", source.Key),
		zap.String("target", targetKey),
		zap.String("reason", string(reason)))
	messages := []contracts.IssueMessage{{Level: "info", ReasonCode: reason, Text: text}}
	status := contracts.PerIssueStatusSkipped
	e.mergeAttachments(ctx, source, targetKey, &messages, &status)
	return contracts.PerIssueResult{Key: source.Key, Action: "skipped", Status: status, Messages: messages}
}

func (e *Engine) mergeAttachments(ctx context.Context, source issue.Issue, targetKey string, messages *[]contracts.IssueMessage, status *contracts.PerIssueStatus) {
	stats, err := e.merger.Merge(ctx, source, targetKey)
	if err != nil {
		e.logger.Error("attachment merge failed",
			zap.String("source", source.Key),
			zap.String("target", targetKey),
			zap.Error(err))
		*messages = append(*messages, contracts.IssueMessage{
			Level:      "warning",
			ReasonCode: contracts.ReasonCodeAttachmentTransferFailed,
			Text:       "attachment merge failed: " + strings.TrimSpace(err.Error()),
		})
		if *status != contracts.PerIssueStatusError {
			*status = contracts.PerIssueStatusWarning
		}
		return
	}

	if stats.Failed > 0 {
		*messages = append(*messages, contracts.IssueMessage{
			Level:      "warning",
			ReasonCode: contracts.ReasonCodeAttachmentTransferFailed,
			Text:       fmt.Sprintf("%d attachment transfers failed", stats.Failed),
		})
		if *status != contracts.PerIssueStatusError {
			*status = contracts.PerIssueStatusWarning
		}
	}
	if transfers := stats.Transfers(); transfers > 0 {
		e.logger.Info("attachments merged",
			zap.String("source", source.Key),
			zap.String("target", targetKey),
			zap.Int("copied", transfers),
			zap.Int("staged", stats.Staged))
	}
}

// crossReferenceIndex keys the linked targets by their stored source
// issue key. Targets with an empty marker are unlinked and excluded;
// duplicate markers keep the first fetched match.
func crossReferenceIndex(targets []issue.Issue, fieldID string) map[string]issue.Issue {
	index := make(map[string]issue.Issue, len(targets))
	for _, target := range targets {
		key, ok := crossReferenceKey(target.Field(fieldID))
		if !ok {
			continue
		}
		if _, exists := index[key]; exists {
			continue
		}
		index[key] = target
	}
	return index
}

// crossReferenceKey unwraps the stored source key. Option-shaped custom
// fields report objects whose value member carries the key; select the
// value member first because that is the shape the bridge writes.
func crossReferenceKey(value issue.FieldValue) (string, bool) {
	if value.Kind() == issue.KindObject {
		for _, member := range []string{"value", "name"} {
			inner, ok := value.ObjectField(member)
			if !ok {
				continue
			}
			if text, ok := inner.Scalar(); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text), true
			}
		}
		return "", false
	}

	text, ok := value.Scalar()
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

func tally(counts *contracts.AggregateCounts, result contracts.PerIssueResult) {
	counts.Processed++

	switch result.Status {
	case contracts.PerIssueStatusError:
		counts.Errors++
	case contracts.PerIssueStatusWarning:
		counts.Warnings++
	case contracts.PerIssueStatusSkipped:
		counts.Skipped++
	}

	switch result.Action {
	case "created":
		counts.Created++
	case "updated":
		counts.Updated++
	}
}

func reasonFromError(err error, fallback contracts.ReasonCode) contracts.ReasonCode {
	var typed *jira.Error
	if errors.As(err, &typed) && typed.ReasonCode != "" {
		return typed.ReasonCode
	}
	return fallback
}
