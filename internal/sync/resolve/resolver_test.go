package resolve

import (
	"encoding/json"
	"testing"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/issue"
)

func severityRule() contracts.FieldMappingRule {
	return contracts.FieldMappingRule{
		Kind:          contracts.MappingKindSystemField,
		Strategy:      contracts.SyncStrategyMappedSync,
		SourceFieldID: "customfield_20001",
		TargetFieldID: "priority",
		SyncDirection: contracts.SyncDirectionBidirectional,
		ValueMapping: contracts.NewOrderedMapping(
			contracts.MappingPair{Source: "Sev-0", Target: "Low"},
			contracts.MappingPair{Source: "Sev-1", Target: "Medium"},
			contracts.MappingPair{Source: "Sev-2", Target: "Medium"},
			contracts.MappingPair{Source: "Sev-3", Target: "High"},
		),
	}
}

func TestMappedSyncForwardWrapsPriorityAsName(t *testing.T) {
	resolved, ok := Value(issue.ValueOption("Sev-1"), severityRule(), contracts.SyncDirectionSourceToTarget)
	if !ok {
		t.Fatalf("expected resolution")
	}
	if got := string(resolved.Raw()); got != `{"name":"Medium"}` {
		t.Fatalf("priority shape mismatch: %s", got)
	}
}

func TestMappedSyncForwardUnknownValueIsAbsent(t *testing.T) {
	if _, ok := Value(issue.String("Sev-9"), severityRule(), contracts.SyncDirectionSourceToTarget); ok {
		t.Fatalf("unknown source value must not resolve")
	}
}

func TestMappedSyncReverseFirstMatchTieBreak(t *testing.T) {
	// Two severities collapse to Medium; the inverse must always pick the
	// first declared one.
	resolved, ok := Value(issue.NameOption("Medium"), severityRule(), contracts.SyncDirectionTargetToSource)
	if !ok {
		t.Fatalf("expected resolution")
	}
	if got := string(resolved.Raw()); got != `{"value":"Sev-1"}` {
		t.Fatalf("tie-break mismatch: %s", got)
	}
}

func TestMappedSyncExplicitReverseMappingWins(t *testing.T) {
	rule := severityRule()
	rule.ReverseMapping = map[string]string{"Medium": "Sev-2"}

	resolved, ok := Value(issue.NameOption("Medium"), rule, contracts.SyncDirectionTargetToSource)
	if !ok {
		t.Fatalf("expected resolution")
	}
	if got := string(resolved.Raw()); got != `{"value":"Sev-2"}` {
		t.Fatalf("explicit reverse mapping must win: %s", got)
	}

	// Values outside the explicit table still fall back to inversion.
	resolved, ok = Value(issue.NameOption("High"), rule, contracts.SyncDirectionTargetToSource)
	if !ok || string(resolved.Raw()) != `{"value":"Sev-3"}` {
		t.Fatalf("fallback inversion mismatch: %s (ok=%t)", resolved.Raw(), ok)
	}
}

func TestMappedSyncReverseUnknownValueIsAbsent(t *testing.T) {
	if _, ok := Value(issue.NameOption("Blocker"), severityRule(), contracts.SyncDirectionTargetToSource); ok {
		t.Fatalf("unmapped target value must not resolve")
	}
}

func TestMappedSyncExtractsNameBeforeValue(t *testing.T) {
	input := issue.FromRaw(json.RawMessage(`{"name":"Sev-1","value":"Sev-3"}`))
	resolved, ok := Value(input, severityRule(), contracts.SyncDirectionSourceToTarget)
	if !ok || string(resolved.Raw()) != `{"name":"Medium"}` {
		t.Fatalf("name-first extraction mismatch: %s (ok=%t)", resolved.Raw(), ok)
	}
}

func TestMappedSyncCustomTargetWrapsAsValue(t *testing.T) {
	rule := severityRule()
	rule.Kind = contracts.MappingKindCustomField
	rule.TargetFieldID = "customfield_30001"

	resolved, ok := Value(issue.String("Sev-0"), rule, contracts.SyncDirectionSourceToTarget)
	if !ok || string(resolved.Raw()) != `{"value":"Low"}` {
		t.Fatalf("custom field shape mismatch: %s (ok=%t)", resolved.Raw(), ok)
	}
}

func TestMappedSyncPlainSystemTargetStaysBare(t *testing.T) {
	rule := contracts.FieldMappingRule{
		Kind:          contracts.MappingKindSystemField,
		Strategy:      contracts.SyncStrategyMappedSync,
		SourceFieldID: "status_category",
		TargetFieldID: "status_category",
		ValueMapping: contracts.NewOrderedMapping(
			contracts.MappingPair{Source: "To Do", Target: "Open"},
		),
	}

	resolved, ok := Value(issue.String("To Do"), rule, contracts.SyncDirectionSourceToTarget)
	if !ok || string(resolved.Raw()) != `"Open"` {
		t.Fatalf("bare shape mismatch: %s (ok=%t)", resolved.Raw(), ok)
	}
}

func TestDirectCopyPassesThrough(t *testing.T) {
	rule := contracts.FieldMappingRule{
		Kind:          contracts.MappingKindSystemField,
		Strategy:      contracts.SyncStrategyDirectCopy,
		SourceFieldID: "summary",
		TargetFieldID: "summary",
	}

	input := issue.String("Login fails")
	resolved, ok := Value(input, rule, contracts.SyncDirectionSourceToTarget)
	if !ok || !resolved.Equal(input) {
		t.Fatalf("direct copy must pass through unchanged")
	}

	if _, ok := Value(issue.Absent, rule, contracts.SyncDirectionSourceToTarget); ok {
		t.Fatalf("absent input must stay absent")
	}
	if _, ok := Value(issue.FromRaw(json.RawMessage("null")), rule, contracts.SyncDirectionSourceToTarget); ok {
		t.Fatalf("null input must stay absent")
	}
}

func TestStaticValueUnwrapsOptionObject(t *testing.T) {
	rule := contracts.FieldMappingRule{
		Kind:          contracts.MappingKindCustomField,
		Strategy:      contracts.SyncStrategyStaticValue,
		TargetFieldID: "customfield_40001",
		StaticValue:   json.RawMessage(`{"value":"Synced"}`),
	}

	resolved, ok := Static(rule)
	if !ok || string(resolved.Raw()) != `{"value":"Synced"}` {
		t.Fatalf("static option shape mismatch: %s (ok=%t)", resolved.Raw(), ok)
	}

	// Bare scalars re-shape for the target convention too.
	rule.StaticValue = json.RawMessage(`"Synced"`)
	resolved, ok = Static(rule)
	if !ok || string(resolved.Raw()) != `{"value":"Synced"}` {
		t.Fatalf("static scalar shape mismatch: %s (ok=%t)", resolved.Raw(), ok)
	}

	// Already shaped objects without a value member pass through.
	rule.StaticValue = json.RawMessage(`{"name":"High"}`)
	resolved, ok = Static(rule)
	if !ok || string(resolved.Raw()) != `{"name":"High"}` {
		t.Fatalf("shaped static must pass through: %s (ok=%t)", resolved.Raw(), ok)
	}

	rule.StaticValue = nil
	if _, ok := Static(rule); ok {
		t.Fatalf("missing static literal must not resolve")
	}
}

func TestSyncMetadataNeverResolves(t *testing.T) {
	rule := contracts.FieldMappingRule{
		Kind:          contracts.MappingKindCustomField,
		Strategy:      contracts.SyncStrategySyncMetadata,
		TargetFieldID: "customfield_10001",
		MetadataType:  contracts.MetadataTypeCustomerIssueID,
	}

	if _, ok := Value(issue.String("CUX-1"), rule, contracts.SyncDirectionSourceToTarget); ok {
		t.Fatalf("metadata rules must not resolve from issue fields")
	}
}

func TestShapeHonorsExplicitFieldType(t *testing.T) {
	testCases := []struct {
		name      string
		fieldType string
		scalar    string
		want      string
	}{
		{name: "option", fieldType: "option", scalar: "Synced", want: `{"value":"Synced"}`},
		{name: "qualified select", fieldType: "com.atlassian.jira.plugin.system.customfieldtypes:select", scalar: "Synced", want: `{"value":"Synced"}`},
		{name: "multiselect", fieldType: "multiselect", scalar: "Synced", want: `[{"value":"Synced"}]`},
		{name: "date truncates", fieldType: "date", scalar: "2023-12-10T10:00:00.000+0800", want: `"2023-12-10"`},
		{name: "datetime keeps precision", fieldType: "datetime", scalar: "2023-12-10T10:00:00.000+0800", want: `"2023-12-10T10:00:00.000+0800"`},
		{name: "text stays bare", fieldType: "text", scalar: "CUX-1", want: `"CUX-1"`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			rule := contracts.FieldMappingRule{
				Kind:            contracts.MappingKindCustomField,
				TargetFieldID:   "customfield_10001",
				TargetFieldType: testCase.fieldType,
			}
			if got := string(Shape(rule, testCase.scalar).Raw()); got != testCase.want {
				t.Fatalf("shape mismatch: got=%s want=%s", got, testCase.want)
			}
		})
	}
}
