// pattern: Imperative Shell
package attach

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/issue"
	"github.com/pweiskircher/jira-bridge/internal/jira"
	"github.com/pweiskircher/jira-bridge/internal/staging"
)

// MediaClient is the attachment slice of a site adapter.
type MediaClient interface {
	ListAttachments(ctx context.Context, issueKey string) ([]jira.AttachmentRecord, error)
	DownloadAttachment(ctx context.Context, record jira.AttachmentRecord) (io.ReadCloser, error)
	UploadAttachment(ctx context.Context, issueKey string, filename string, content io.Reader) error
}

type MergerOptions struct {
	Source           MediaClient
	Target           MediaClient
	Area             *staging.Area
	SourceProjectKey string
	TargetProjectKey string
	Logger           *zap.Logger
	DryRun           bool
}

// Merger reconciles the attachment sets of one bridged issue pair. The
// merge is additive only: every file ends up on both sides, nothing is
// ever deleted, and filenames are matched after stripping the owning
// project marker so re-uploaded copies never ping-pong.
type Merger struct {
	source           MediaClient
	target           MediaClient
	area             *staging.Area
	sourceProjectKey string
	targetProjectKey string
	logger           *zap.Logger
	dryRun           bool
}

type MergeStats struct {
	Staged         int
	CopiedToTarget int
	CopiedToSource int
	Failed         int
}

func (s MergeStats) Transfers() int {
	return s.CopiedToTarget + s.CopiedToSource
}

func NewMerger(options MergerOptions) *Merger {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		source:           options.Source,
		target:           options.Target,
		area:             options.Area,
		sourceProjectKey: options.SourceProjectKey,
		targetProjectKey: options.TargetProjectKey,
		logger:           logger,
		dryRun:           options.DryRun,
	}
}

// Merge brings both sides of one issue pair to the union of their
// attachment sets. Per-attachment failures are logged and skipped; the
// next run retries them naturally. In dry-run mode nothing is staged or
// uploaded and the counts report what a real run would transfer.
func (m *Merger) Merge(ctx context.Context, source issue.Issue, targetKey string) (MergeStats, error) {
	stats := MergeStats{}

	sourceRecords, err := m.source.ListAttachments(ctx, source.Key)
	if err != nil {
		return stats, err
	}
	targetRecords, err := m.target.ListAttachments(ctx, targetKey)
	if err != nil {
		return stats, err
	}
	if len(sourceRecords) == 0 && len(targetRecords) == 0 {
		return stats, nil
	}

	if m.dryRun {
		return m.plan(sourceRecords, targetRecords), nil
	}

	// Source records stage first so a file living on both sides keeps its
	// original owner's marker in the staging directory.
	m.stage(ctx, &stats, m.source, sourceRecords, m.sourceProjectKey, targetKey)
	m.stage(ctx, &stats, m.target, targetRecords, m.targetProjectKey, targetKey)

	stats.CopiedToTarget = m.copyMissing(ctx, &stats, sourceRecords, m.target, targetKey, targetKey)
	stats.CopiedToSource = m.copyMissing(ctx, &stats, targetRecords, m.source, source.Key, targetKey)
	return stats, nil
}

// stage downloads every record whose stripped name is not yet in the
// staging directory for this issue pair.
func (m *Merger) stage(ctx context.Context, stats *MergeStats, client MediaClient, records []jira.AttachmentRecord, ownerProjectKey string, stagingKey string) {
	stagedStripped, err := m.stagedStrippedNames(stagingKey)
	if err != nil {
		m.logger.Error("staging listing failed",
			zap.String("target", stagingKey), zap.Error(err))
		stats.Failed += len(records)
		return
	}

	for _, record := range records {
		stripped := contracts.StripAttachmentPrefix(record.Filename)
		if _, ok := stagedStripped[stripped]; ok {
			continue
		}

		name := contracts.PrefixedAttachmentName(stripped, ownerProjectKey)
		if err := issue.SafeStagingName(name); err != nil {
			m.logger.Warn("refusing unsafe attachment filename",
				zap.String("target", stagingKey),
				zap.String("filename", record.Filename),
				zap.Error(err))
			stats.Failed++
			continue
		}

		body, err := client.DownloadAttachment(ctx, record)
		if err != nil {
			m.logger.Error("attachment download failed",
				zap.String("target", stagingKey),
				zap.String("filename", record.Filename),
				zap.Error(err))
			stats.Failed++
			continue
		}
		size, err := m.area.Put(stagingKey, name, body)
		_ = body.Close()
		if err != nil {
			m.logger.Error("attachment staging failed",
				zap.String("target", stagingKey),
				zap.String("filename", name),
				zap.Error(err))
			stats.Failed++
			continue
		}

		stagedStripped[stripped] = name
		stats.Staged++
		m.logger.Debug("attachment staged",
			zap.String("target", stagingKey),
			zap.String("filename", name),
			zap.Int64("bytes", size))
	}
}

// copyMissing uploads staged copies of `from` records that the destination
// issue does not hold yet. The destination list is re-fetched live right
// before uploading so a copy landed by a previous step is never doubled.
func (m *Merger) copyMissing(ctx context.Context, stats *MergeStats, from []jira.AttachmentRecord, dest MediaClient, destKey string, stagingKey string) int {
	destRecords, err := dest.ListAttachments(ctx, destKey)
	if err != nil {
		m.logger.Error("attachment list refresh failed",
			zap.String("issue", destKey), zap.Error(err))
		stats.Failed++
		return 0
	}
	destStripped := make(map[string]struct{}, len(destRecords))
	for _, record := range destRecords {
		destStripped[contracts.StripAttachmentPrefix(record.Filename)] = struct{}{}
	}

	stagedIndex, err := m.stagedStrippedNames(stagingKey)
	if err != nil {
		m.logger.Error("staging listing failed",
			zap.String("target", stagingKey), zap.Error(err))
		stats.Failed++
		return 0
	}

	copied := 0
	for _, record := range from {
		stripped := contracts.StripAttachmentPrefix(record.Filename)
		if _, ok := destStripped[stripped]; ok {
			continue
		}

		stagedName, ok := stagedIndex[stripped]
		if !ok {
			m.logger.Warn("staged copy missing, skipping upload",
				zap.String("issue", destKey),
				zap.String("filename", record.Filename))
			stats.Failed++
			continue
		}

		reader, err := m.area.Open(stagingKey, stagedName)
		if err != nil {
			m.logger.Error("staged copy open failed",
				zap.String("issue", destKey),
				zap.String("filename", stagedName),
				zap.Error(err))
			stats.Failed++
			continue
		}
		err = dest.UploadAttachment(ctx, destKey, stagedName, reader)
		_ = reader.Close()
		if err != nil {
			m.logger.Error("attachment upload failed",
				zap.String("issue", destKey),
				zap.String("filename", stagedName),
				zap.Error(err))
			stats.Failed++
			continue
		}

		destStripped[stripped] = struct{}{}
		copied++
		m.logger.Info("attachment copied",
			zap.String("issue", destKey),
			zap.String("filename", stagedName))
	}
	return copied
}

// plan counts what a real run would transfer without touching anything.
func (m *Merger) plan(sourceRecords []jira.AttachmentRecord, targetRecords []jira.AttachmentRecord) MergeStats {
	stats := MergeStats{}
	sourceStripped := strippedSet(sourceRecords)
	targetStripped := strippedSet(targetRecords)

	for stripped := range sourceStripped {
		if _, ok := targetStripped[stripped]; !ok {
			stats.CopiedToTarget++
		}
	}
	for stripped := range targetStripped {
		if _, ok := sourceStripped[stripped]; !ok {
			stats.CopiedToSource++
		}
	}
	m.logger.Info("dry run: attachment merge planned",
		zap.Int("to_target", stats.CopiedToTarget),
		zap.Int("to_source", stats.CopiedToSource))
	return stats
}

// stagedStrippedNames indexes the staging directory by stripped filename.
func (m *Merger) stagedStrippedNames(stagingKey string) (map[string]string, error) {
	names, err := m.area.List(stagingKey)
	if err != nil {
		return nil, err
	}

	index := make(map[string]string, len(names))
	for _, name := range names {
		stripped := contracts.StripAttachmentPrefix(name)
		if _, ok := index[stripped]; ok {
			continue
		}
		index[stripped] = name
	}
	return index, nil
}

func strippedSet(records []jira.AttachmentRecord) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, record := range records {
		set[contracts.StripAttachmentPrefix(record.Filename)] = struct{}{}
	}
	return set
}
