package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/config"
	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/jira"
	"github.com/pweiskircher/jira-bridge/internal/output"
)

// siteRole selects one of the two bridged sites.
type siteRole string

const (
	siteRoleSource siteRole = "source"
	siteRoleTarget siteRole = "target"
)

func parseSiteRole(value string) (siteRole, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(siteRoleSource):
		return siteRoleSource, nil
	case string(siteRoleTarget):
		return siteRoleTarget, nil
	default:
		return "", fmt.Errorf("invalid --site %q (expected source|target)", value)
	}
}

// resolveRuntime runs the shared startup dance: load .env, read the
// config file, merge environment overrides, validate.
func resolveRuntime(workDir string, configPath string, environment config.Environment, requireTokens bool) (config.RuntimeSettings, error) {
	if _, err := config.LoadEnvFile(filepath.Join(workDir, contracts.DefaultEnvFilePath)); err != nil {
		return config.RuntimeSettings{}, err
	}

	cfg, err := config.Read(resolveWorkDirPath(workDir, configPath, contracts.ConfigFilePath))
	if err != nil {
		return config.RuntimeSettings{}, fmt.Errorf("failed to load config: %w", err)
	}

	if environment == (config.Environment{}) {
		environment = config.EnvironmentFromOS()
	}

	return config.Resolve(cfg, environment, config.ResolveOptions{RequireTokens: requireTokens})
}

func resolveWorkDirPath(workDir string, override string, fallback string) string {
	path := strings.TrimSpace(override)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}

// buildAdapters returns one adapter per site, keeping any injected
// replacements. Tests inject fakes; production passes nil.
func buildAdapters(settings config.RuntimeSettings, source jira.Adapter, target jira.Adapter) (jira.Adapter, jira.Adapter, error) {
	if source == nil {
		built, err := jira.NewSiteAdapter(jira.SiteAdapterOptions{Site: settings.Source})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize source site adapter: %w", err)
		}
		source = built
	}
	if target == nil {
		built, err := jira.NewSiteAdapter(jira.SiteAdapterOptions{Site: settings.Target})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize target site adapter: %w", err)
		}
		target = built
	}
	return source, target, nil
}

func appendResult(report *output.Report, result contracts.PerIssueResult) {
	report.Issues = append(report.Issues, result)
	report.Counts.Processed++

	switch result.Status {
	case contracts.PerIssueStatusError:
		report.Counts.Errors++
	case contracts.PerIssueStatusWarning:
		report.Counts.Warnings++
	case contracts.PerIssueStatusSkipped:
		report.Counts.Skipped++
	}

	switch result.Action {
	case "created":
		report.Counts.Created++
	case "updated":
		report.Counts.Updated++
	}
}

func reasonFromError(err error, fallback contracts.ReasonCode) contracts.ReasonCode {
	var typed *jira.Error
	if errors.As(err, &typed) && typed.ReasonCode != "" {
		return typed.ReasonCode
	}
	return fallback
}
