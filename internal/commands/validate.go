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

type ValidateOptions struct {
	ConfigPath  string
	MappingPath string
	Live        bool
	Environment config.Environment
	Source      jira.Adapter
	Target      jira.Adapter
}

// RunValidate checks the config file and mapping table offline. With
// Live set it additionally cross-checks every custom field id in the
// table against the field catalog of the owning site.
func RunValidate(ctx context.Context, workDir string, options ValidateOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandValidate)}

	settings, err := resolveRuntime(workDir, options.ConfigPath, options.Environment, options.Live)
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

	var sourceFields, targetFields map[string]bool
	if options.Live {
		source, target, err := buildAdapters(settings, options.Source, options.Target)
		if err != nil {
			return report, err
		}

		sourceFields, err = fieldCatalog(ctx, source)
		if err != nil {
			return report, fmt.Errorf("failed to list source fields: %w", err)
		}
		targetFields, err = fieldCatalog(ctx, target)
		if err != nil {
			return report, fmt.Errorf("failed to list target fields: %w", err)
		}
	}

	for i, rule := range rules {
		result := contracts.PerIssueResult{
			Key:    ruleLabel(rule, i),
			Action: "rule",
			Status: contracts.PerIssueStatusSuccess,
			Messages: []contracts.IssueMessage{{
				Level: "info",
				Text:  ruleDescription(rule),
			}},
		}

		if options.Live {
			for _, missing := range unknownCustomFields(rule, sourceFields, targetFields) {
				result.Status = contracts.PerIssueStatusError
				result.Messages = append(result.Messages, contracts.IssueMessage{
					Level:      "error",
					ReasonCode: contracts.ReasonCodeFieldUnknown,
					Text:       missing,
				})
			}
		}

		appendResult(&report, result)
	}

	return report, nil
}

func fieldCatalog(ctx context.Context, adapter jira.Adapter) (map[string]bool, error) {
	fields, err := adapter.ListFields(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]bool, len(fields))
	for _, field := range fields {
		catalog[field.ID] = true
	}
	return catalog, nil
}

// unknownCustomFields reports custom field ids the owning site does not
// define. System field ids are not checked; every site has them.
func unknownCustomFields(rule contracts.FieldMappingRule, sourceFields, targetFields map[string]bool) []string {
	missing := make([]string, 0, 2)
	if isCustomFieldID(rule.SourceFieldID) && !sourceFields[rule.SourceFieldID] {
		missing = append(missing, fmt.Sprintf("unknown field %s on source site", rule.SourceFieldID))
	}
	if isCustomFieldID(rule.TargetFieldID) && !targetFields[rule.TargetFieldID] {
		missing = append(missing, fmt.Sprintf("unknown field %s on target site", rule.TargetFieldID))
	}
	return missing
}

func isCustomFieldID(fieldID string) bool {
	return strings.HasPrefix(fieldID, "customfield_")
}

func ruleLabel(rule contracts.FieldMappingRule, index int) string {
	switch {
	case rule.MetadataType != "":
		return string(rule.MetadataType)
	case rule.SourceFieldID != "":
		return rule.SourceFieldID
	case rule.SourceFieldName != "":
		return rule.SourceFieldName
	case rule.TargetFieldID != "":
		return rule.TargetFieldID
	default:
		return fmt.Sprintf("rule-%d", index)
	}
}

func ruleDescription(rule contracts.FieldMappingRule) string {
	parts := []string{
		"strategy=" + string(rule.EffectiveStrategy()),
		"direction=" + string(rule.EffectiveDirection()),
	}
	if rule.MetadataType != "" {
		parts = append(parts, "metadata="+string(rule.MetadataType))
	}
	if rule.TargetFieldID != "" {
		parts = append(parts, "target="+rule.TargetFieldID)
	}
	return strings.Join(parts, " ")
}
