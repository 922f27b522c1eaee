// pattern: Functional Core
package resolve

import (
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/issue"
)

// Value resolves one field value through a mapping rule in a concrete
// direction. The boolean reports whether a value resolved at all; absent
// results mean the field is left untouched.
//
// SYNC_METADATA rules never resolve here. Their values come from run
// state (current time, source issue key) and are applied by the engine.
func Value(input issue.FieldValue, rule contracts.FieldMappingRule, direction contracts.SyncDirection) (issue.FieldValue, bool) {
	switch rule.EffectiveStrategy() {
	case contracts.SyncStrategyStaticValue:
		return Static(rule)
	case contracts.SyncStrategySyncMetadata:
		return issue.Absent, false
	case contracts.SyncStrategyDirectCopy:
		if !input.IsPresent() {
			return issue.Absent, false
		}
		return input, true
	case contracts.SyncStrategyMappedSync:
		return mapped(input, rule, direction)
	default:
		return issue.Absent, false
	}
}

// Static resolves a STATIC_VALUE literal. Option objects carrying a value
// member unwrap to their scalar and re-shape for the target field; any
// other object is taken as an already shaped Jira value.
func Static(rule contracts.FieldMappingRule) (issue.FieldValue, bool) {
	literal := issue.FromRaw(rule.StaticValue)
	if !literal.IsPresent() {
		return issue.Absent, false
	}

	if literal.Kind() == issue.KindObject {
		member, ok := literal.ObjectField("value")
		if !ok {
			return literal, true
		}
		if scalar, ok := member.Scalar(); ok {
			return Shape(rule, scalar), true
		}
		return member, true
	}

	if scalar, ok := literal.Scalar(); ok {
		return Shape(rule, scalar), true
	}
	return literal, true
}

func mapped(input issue.FieldValue, rule contracts.FieldMappingRule, direction contracts.SyncDirection) (issue.FieldValue, bool) {
	text, ok := input.ExtractText()
	if !ok || text == "" {
		return issue.Absent, false
	}

	switch direction {
	case contracts.SyncDirectionSourceToTarget:
		mappedValue, ok := rule.ValueMapping.Lookup(text)
		if !ok {
			return issue.Absent, false
		}
		return Shape(rule, mappedValue), true

	case contracts.SyncDirectionTargetToSource:
		// Explicit reverse entries win. Without one, the forward table
		// inverts by first declared match, a deliberate deterministic
		// tie-break for non-injective tables.
		if reversed, ok := rule.ReverseMapping[text]; ok {
			return issue.ValueOption(reversed), true
		}
		if source, ok := rule.ValueMapping.FirstSourceFor(text); ok {
			return issue.ValueOption(source), true
		}
		return issue.Absent, false

	default:
		return issue.Absent, false
	}
}

// Shape renders a scalar in the JSON shape the target field expects. An
// explicit targetFieldType wins; otherwise the field id convention
// decides: the priority system field takes {name: v}, custom fields take
// {value: v}, anything else takes the bare scalar.
func Shape(rule contracts.FieldMappingRule, scalar string) issue.FieldValue {
	switch normalizeFieldType(rule.TargetFieldType) {
	case "option", "select":
		return issue.ValueOption(scalar)
	case "array", "multiselect":
		return issue.FromAny([]map[string]string{{"value": scalar}})
	case "date":
		return issue.String(datePart(scalar))
	case "datetime", "string", "text", "textarea", "number", "float":
		return issue.String(scalar)
	}

	if rule.IsSystemField() && rule.TargetFieldID == "priority" {
		return issue.NameOption(scalar)
	}
	if rule.Kind == contracts.MappingKindCustomField || strings.Contains(rule.TargetFieldID, "customfield") {
		return issue.ValueOption(scalar)
	}
	return issue.String(scalar)
}

// normalizeFieldType reduces fully qualified Jira custom field type names
// to their short forms.
func normalizeFieldType(fieldType string) string {
	trimmed := strings.TrimSpace(strings.ToLower(fieldType))
	if idx := strings.LastIndex(trimmed, ":"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return trimmed
}

// datePart truncates a datetime to its date, for date-only Jira fields.
func datePart(scalar string) string {
	if idx := strings.Index(scalar, "T"); idx > 0 {
		return scalar[:idx]
	}
	return scalar
}
