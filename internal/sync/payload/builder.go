// pattern: Functional Core
package payload

import (
	"time"

	"github.com/pweiskircher/jira-bridge/internal/adf"
	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/issue"
	"github.com/pweiskircher/jira-bridge/internal/sync/resolve"
)

// attachmentFieldID never appears in a field payload. Attachments move
// through the dedicated media endpoints.
const attachmentFieldID = "attachment"

// BuildCreate assembles the field map for creating the target twin of a
// source issue. Rules run in table order. Metadata fields and statics
// that trigger on create are deferred so that a field rejected by the
// create screen cannot sink the whole call.
func BuildCreate(input CreateInput) CreateResult {
	result := CreateResult{Fields: issue.Fields{}}
	result.Fields["project"] = issue.FromAny(map[string]any{"key": input.TargetProjectKey})
	result.Fields["issuetype"] = issue.FromAny(map[string]any{"name": input.IssueType})

	for _, rule := range input.Rules {
		if !rule.AppliesTo(contracts.SyncDirectionSourceToTarget) {
			continue
		}
		switch rule.EffectiveStrategy() {
		case contracts.SyncStrategySyncMetadata:
			result.Deferred = append(result.Deferred, DeferredField{
				FieldID: rule.TargetFieldID,
				Value:   metadataValue(rule, input.Source.Key, input.Now),
				Rule:    rule,
			})
		case contracts.SyncStrategyStaticValue:
			if !rule.TriggersOn(contracts.TriggerEventCreate) {
				continue
			}
			value, ok := resolve.Static(rule)
			if !ok {
				continue
			}
			result.Deferred = append(result.Deferred, DeferredField{
				FieldID: rule.TargetFieldID,
				Value:   value,
				Rule:    rule,
			})
		default:
			if rule.SourceFieldID == attachmentFieldID || rule.TargetFieldID == attachmentFieldID {
				continue
			}
			value, ok := resolve.Value(input.Source.Field(rule.SourceFieldID), rule, contracts.SyncDirectionSourceToTarget)
			if !ok {
				continue
			}
			result.Fields[rule.TargetFieldID] = applyPrefix(rule, value)
		}
	}
	return result
}

// BuildUpdate assembles the field map for refreshing one side from the
// other. For source-to-target runs the map is written to the target
// issue and carries the sync marker; for target-to-source runs it is
// written to the source issue and the marker is issued separately via
// LastSyncMarker once the write has succeeded.
func BuildUpdate(input UpdateInput) issue.Fields {
	fields := issue.Fields{}
	toTarget := input.Direction == contracts.SyncDirectionSourceToTarget

	for _, rule := range input.Rules {
		if !rule.AppliesTo(input.Direction) {
			continue
		}
		switch rule.EffectiveStrategy() {
		case contracts.SyncStrategySyncMetadata:
			// The cross-reference field is written once at create time
			// and never touched again. The sync marker always lands on
			// the target side.
			if toTarget && rule.MetadataType == contracts.MetadataTypeLastSyncTime {
				fields[rule.TargetFieldID] = metadataValue(rule, "", input.Now)
			}
		case contracts.SyncStrategyStaticValue:
			if !toTarget || !rule.TriggersOn(contracts.TriggerEventUpdate) {
				continue
			}
			if value, ok := resolve.Static(rule); ok {
				fields[rule.TargetFieldID] = value
			}
		default:
			readID, writeID := rule.SourceFieldID, rule.TargetFieldID
			from := input.Source
			if !toTarget {
				readID, writeID = rule.TargetFieldID, rule.SourceFieldID
				from = input.Target
			}
			if readID == attachmentFieldID || writeID == attachmentFieldID {
				continue
			}
			value, ok := resolve.Value(from.Field(readID), rule, input.Direction)
			if !ok {
				continue
			}
			if toTarget {
				value = applyPrefix(rule, value)
			}
			fields[writeID] = value
		}
	}
	return fields
}

// LastSyncMarker returns the single-field update that stamps the sync
// marker on the target issue, or false when the table carries no
// last-sync rule.
func LastSyncMarker(rules []contracts.FieldMappingRule, now time.Time) (string, issue.FieldValue, bool) {
	rule, ok := contracts.LastSyncTimeRule(rules)
	if !ok {
		return "", issue.Absent, false
	}
	return rule.TargetFieldID, metadataValue(rule, "", now), true
}

// metadataValue materializes a metadata rule. The cross-reference field
// takes the source issue key shaped by the rule; the sync marker takes
// the current time, shaped only when the rule names an explicit field
// type so that plain datetime fields receive the bare timestamp.
func metadataValue(rule contracts.FieldMappingRule, sourceKey string, now time.Time) issue.FieldValue {
	switch rule.MetadataType {
	case contracts.MetadataTypeCustomerIssueID:
		return resolve.Shape(rule, sourceKey)
	case contracts.MetadataTypeLastSyncTime:
		stamp := contracts.FormatJiraTimestamp(now)
		if rule.TargetFieldType != "" {
			return resolve.Shape(rule, stamp)
		}
		return issue.String(stamp)
	default:
		return issue.Absent
	}
}

// applyPrefix marks a synced value with the rule's prefix. Documents get
// the prefix spliced into their first text run; plain strings get it
// prepended. Anything else passes through untouched.
func applyPrefix(rule contracts.FieldMappingRule, value issue.FieldValue) issue.FieldValue {
	if rule.Prefix == "" {
		return value
	}
	if value.IsDocument() {
		if prefixed, ok := adf.WithLeadingText(value, rule.Prefix); ok {
			return prefixed
		}
		return value
	}
	if text, ok := value.StringValue(); ok {
		return issue.String(adf.PrefixPlainText(text, rule.Prefix))
	}
	return value
}
