package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/config"
	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/issue"
	"github.com/pweiskircher/jira-bridge/internal/jira"
	"github.com/pweiskircher/jira-bridge/internal/output"
)

type InspectOptions struct {
	Key         string
	Site        string
	Attachments bool
	ConfigPath  string
	MappingPath string
	Environment config.Environment
	Source      jira.Adapter
	Target      jira.Adapter
}

// RunInspect fetches one issue and renders its synced surface: the
// system fields, every mapped field the site owns, and optionally the
// attachment list.
func RunInspect(ctx context.Context, workDir string, options InspectOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandInspect)}

	key := strings.TrimSpace(options.Key)
	if key == "" {
		return report, fmt.Errorf("issue key is required")
	}

	role, err := parseSiteRole(options.Site)
	if err != nil {
		return report, err
	}

	settings, err := resolveRuntime(workDir, options.ConfigPath, options.Environment, true)
	if err != nil {
		return report, err
	}

	mappingPath := options.MappingPath
	if mappingPath == "" {
		mappingPath = settings.MappingPath
	}
	rules, err := config.ReadMappingRules(resolveWorkDirPath(workDir, mappingPath, contracts.DefaultMappingFilePath))
	if err != nil {
		return report, fmt.Errorf("failed to load mapping table: %w", err)
	}

	source, target, err := buildAdapters(settings, options.Source, options.Target)
	if err != nil {
		return report, err
	}

	adapter := source
	if role == siteRoleTarget {
		adapter = target
	}

	found, err := adapter.SearchIssues(ctx, jira.SearchRequest{JQL: contracts.SingleIssueJQL(key), PageSize: 2})
	if err != nil {
		return report, fmt.Errorf("failed to fetch issue %s: %w", key, err)
	}
	if len(found) == 0 {
		return report, fmt.Errorf("issue %s not found on %s site", key, role)
	}
	inspected := found[0]

	messages := describeIssue(inspected, rules, role)

	if options.Attachments {
		records, err := adapter.ListAttachments(ctx, inspected.Key)
		if err != nil {
			return report, fmt.Errorf("failed to list attachments of %s: %w", inspected.Key, err)
		}
		for _, record := range records {
			messages = append(messages, contracts.IssueMessage{
				Level: "info",
				Text:  fmt.Sprintf("attachment: %s (%d bytes)", record.Filename, record.Size),
			})
		}
	}

	appendResult(&report, contracts.PerIssueResult{
		Key:      inspected.Key,
		Action:   "inspect",
		Status:   contracts.PerIssueStatusSuccess,
		Messages: messages,
	})

	return report, nil
}

func describeIssue(inspected issue.Issue, rules []contracts.FieldMappingRule, role siteRole) []contracts.IssueMessage {
	messages := []contracts.IssueMessage{
		{Level: "info", Text: "summary: " + inspected.Summary()},
	}
	if name := inspected.IssueTypeName(); name != "" {
		messages = append(messages, contracts.IssueMessage{Level: "info", Text: "type: " + name})
	}
	if name := inspected.StatusName(); name != "" {
		messages = append(messages, contracts.IssueMessage{Level: "info", Text: "status: " + name})
	}
	if updated := inspected.UpdatedRaw(); updated != "" {
		messages = append(messages, contracts.IssueMessage{Level: "info", Text: "updated: " + updated})
	}

	seen := map[string]bool{}
	for _, rule := range rules {
		fieldID := rule.SourceFieldID
		if role == siteRoleTarget {
			fieldID = rule.TargetFieldID
		}
		if !isCustomFieldID(fieldID) || seen[fieldID] {
			continue
		}
		seen[fieldID] = true

		value := inspected.Field(fieldID)
		if !value.IsPresent() {
			messages = append(messages, contracts.IssueMessage{Level: "info", Text: fieldID + ": (empty)"})
			continue
		}
		if text, ok := value.ExtractText(); ok {
			messages = append(messages, contracts.IssueMessage{Level: "info", Text: fieldID + ": " + text})
			continue
		}
		messages = append(messages, contracts.IssueMessage{Level: "info", Text: fieldID + ": " + string(value.Raw())})
	}

	return messages
}
