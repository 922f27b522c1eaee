package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pweiskircher/jira-bridge/internal/config"
	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/jira"
	"github.com/pweiskircher/jira-bridge/internal/output"
	"github.com/pweiskircher/jira-bridge/internal/staging"
	"github.com/pweiskircher/jira-bridge/internal/sync/attach"
	"github.com/pweiskircher/jira-bridge/internal/sync/engine"
)

type SyncOptions struct {
	ConfigPath    string
	MappingPath   string
	DryRun        bool
	DebugIssueKey string
	RecentHours   int

	Logger      *zap.Logger
	Now         func() time.Time
	Environment config.Environment
	Source      jira.Adapter
	Target      jira.Adapter
}

func RunSync(ctx context.Context, workDir string, options SyncOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandSync), DryRun: options.DryRun}

	eng, err := buildSyncEngine(workDir, options)
	if err != nil {
		return report, err
	}

	result, err := eng.Run(ctx)
	report.Counts = result.Counts
	report.Issues = result.Issues
	return report, err
}

// buildSyncEngine assembles the full sync stack: runtime settings,
// mapping table, both site adapters, the staging-backed attachment
// merger, and the engine itself.
func buildSyncEngine(workDir string, options SyncOptions) (*engine.Engine, error) {
	settings, err := resolveRuntime(workDir, options.ConfigPath, options.Environment, true)
	if err != nil {
		return nil, err
	}

	mappingPath := options.MappingPath
	if mappingPath == "" {
		mappingPath = settings.MappingPath
	}
	rules, err := config.ReadMappingRules(resolveWorkDirPath(workDir, mappingPath, contracts.DefaultMappingFilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping table: %w", err)
	}

	source, target, err := buildAdapters(settings, options.Source, options.Target)
	if err != nil {
		return nil, err
	}

	area, err := staging.New(resolveWorkDirPath(workDir, settings.StagingDir, contracts.DefaultStagingRootDir))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare staging area: %w", err)
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	merger := attach.NewMerger(attach.MergerOptions{
		Source:           source,
		Target:           target,
		Area:             area,
		SourceProjectKey: settings.Source.ProjectKey,
		TargetProjectKey: settings.Target.ProjectKey,
		Logger:           logger,
		DryRun:           options.DryRun,
	})

	return engine.New(engine.Options{
		Source:           source,
		Target:           target,
		Merger:           merger,
		Rules:            rules,
		SourceProjectKey: settings.Source.ProjectKey,
		TargetProjectKey: settings.Target.ProjectKey,
		IssueTypes:       settings.SyncIssueTypes,
		CreateIssueType:  settings.CreateIssueType,
		RecentWindow:     contracts.RecentWindowFromHours(options.RecentHours),
		DebugIssueKey:    options.DebugIssueKey,
		DryRun:           options.DryRun,
		Logger:           logger,
		Now:              options.Now,
	}), nil
}
