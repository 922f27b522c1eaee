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

type FieldsOptions struct {
	Site        string
	All         bool
	Search      string
	ConfigPath  string
	Environment config.Environment
	Source      jira.Adapter
	Target      jira.Adapter
}

// RunFields lists the field definitions of one site. Custom fields only
// by default; All includes the system fields too.
func RunFields(ctx context.Context, workDir string, options FieldsOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandFields)}

	role, err := parseSiteRole(options.Site)
	if err != nil {
		return report, err
	}

	settings, err := resolveRuntime(workDir, options.ConfigPath, options.Environment, true)
	if err != nil {
		return report, err
	}

	source, target, err := buildAdapters(settings, options.Source, options.Target)
	if err != nil {
		return report, err
	}

	adapter := source
	if role == siteRoleTarget {
		adapter = target
	}

	fields, err := adapter.ListFields(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list fields: %w", err)
	}

	search := strings.ToLower(strings.TrimSpace(options.Search))
	for _, field := range fields {
		if !options.All && !field.Custom {
			continue
		}
		if search != "" {
			id := strings.ToLower(field.ID)
			name := strings.ToLower(field.Name)
			if !strings.Contains(id, search) && !strings.Contains(name, search) {
				continue
			}
		}

		text := fmt.Sprintf("name=%s custom=%t", field.Name, field.Custom)
		if field.SchemaType != "" {
			text += " type=" + field.SchemaType
		}
		appendResult(&report, contracts.PerIssueResult{
			Key:    field.ID,
			Action: "field",
			Status: contracts.PerIssueStatusSuccess,
			Messages: []contracts.IssueMessage{{
				Level: "info",
				Text:  text,
			}},
		})
	}

	return report, nil
}
