package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/config"
	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/jira"
	"github.com/pweiskircher/jira-bridge/internal/output"
)

type CheckOptions struct {
	ConfigPath  string
	Environment config.Environment
	Source      jira.Adapter
	Target      jira.Adapter
}

// RunCheck probes authentication and project existence on both sites.
// Every probe runs even after a failure so the report shows the full
// picture; any failed probe fails the command.
func RunCheck(ctx context.Context, workDir string, options CheckOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandCheck)}

	settings, err := resolveRuntime(workDir, options.ConfigPath, options.Environment, true)
	if err != nil {
		return report, err
	}

	source, target, err := buildAdapters(settings, options.Source, options.Target)
	if err != nil {
		return report, err
	}

	failed := 0
	failed += checkSite(ctx, &report, siteRoleSource, source, settings.Source.ProjectKey)
	failed += checkSite(ctx, &report, siteRoleTarget, target, settings.Target.ProjectKey)

	if failed > 0 {
		return report, fmt.Errorf("connection check failed for %d of 4 probes", failed)
	}
	return report, nil
}

func checkSite(ctx context.Context, report *output.Report, role siteRole, adapter jira.Adapter, projectKey string) int {
	failed := 0

	user, err := adapter.Myself(ctx)
	if err != nil {
		failed++
		appendResult(report, contracts.PerIssueResult{
			Key:    string(role),
			Action: "auth-check",
			Status: contracts.PerIssueStatusError,
			Messages: []contracts.IssueMessage{{
				Level:      "error",
				ReasonCode: reasonFromError(err, contracts.ReasonCodeAuthFailed),
				Text:       "failed to authenticate: " + strings.TrimSpace(err.Error()),
			}},
		})
	} else {
		name := user.DisplayName
		if name == "" {
			name = user.AccountID
		}
		appendResult(report, contracts.PerIssueResult{
			Key:    string(role),
			Action: "auth-check",
			Status: contracts.PerIssueStatusSuccess,
			Messages: []contracts.IssueMessage{{
				Level: "info",
				Text:  "authenticated as " + name,
			}},
		})
	}

	project, err := adapter.GetProject(ctx, projectKey)
	if err != nil {
		failed++
		appendResult(report, contracts.PerIssueResult{
			Key:    string(role),
			Action: "project-check",
			Status: contracts.PerIssueStatusError,
			Messages: []contracts.IssueMessage{{
				Level:      "error",
				ReasonCode: reasonFromError(err, contracts.ReasonCodeTransportError),
				Text:       fmt.Sprintf("failed to fetch project %s: %s", projectKey, strings.TrimSpace(err.Error())),
			}},
		})
	} else {
		appendResult(report, contracts.PerIssueResult{
			Key:    string(role),
			Action: "project-check",
			Status: contracts.PerIssueStatusSuccess,
			Messages: []contracts.IssueMessage{{
				Level: "info",
				Text:  fmt.Sprintf("project %s: %s", project.Key, project.Name),
			}},
		})
	}

	return failed
}
