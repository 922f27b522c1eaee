// pattern: Functional Core
package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MappingKind classifies which side of the Jira field namespace a rule targets.
type MappingKind string

const (
	MappingKindSystemField MappingKind = "system-field"
	MappingKindCustomField MappingKind = "custom-field"
)

// SyncStrategy selects how a rule resolves values between the two sites.
type SyncStrategy string

const (
	SyncStrategyDirectCopy   SyncStrategy = "DIRECT_COPY"
	SyncStrategyMappedSync   SyncStrategy = "MAPPED_SYNC"
	SyncStrategyStaticValue  SyncStrategy = "STATIC_VALUE"
	SyncStrategySyncMetadata SyncStrategy = "SYNC_METADATA"
)

// SyncDirection constrains which way a rule is allowed to flow.
type SyncDirection string

const (
	SyncDirectionSourceToTarget SyncDirection = "S2T"
	SyncDirectionTargetToSource SyncDirection = "T2S"
	SyncDirectionBidirectional  SyncDirection = "BIDIRECTIONAL"
)

// MetadataType names the bookkeeping fields maintained on target issues.
type MetadataType string

const (
	MetadataTypeCustomerIssueID MetadataType = "customer_issue_id"
	MetadataTypeLastSyncTime    MetadataType = "last_sync_time"
)

// TriggerEvent names the lifecycle moments a STATIC_VALUE rule applies on.
type TriggerEvent string

const (
	TriggerEventCreate TriggerEvent = "CREATE"
	TriggerEventUpdate TriggerEvent = "UPDATE"
)

// MappingPair is one source-value to target-value entry of a value table.
type MappingPair struct {
	Source string
	Target string
}

// OrderedMapping is a value table that preserves JSON declaration order.
//
// Target-to-source fallback inversion is defined as first-match in
// declaration order, so decoding into a Go map would lose the contract.
type OrderedMapping struct {
	pairs []MappingPair
}

// NewOrderedMapping builds a table from pairs, keeping their order.
func NewOrderedMapping(pairs ...MappingPair) OrderedMapping {
	return OrderedMapping{pairs: append([]MappingPair(nil), pairs...)}
}

func (m OrderedMapping) Len() int {
	return len(m.pairs)
}

// Pairs returns the entries in declaration order.
func (m OrderedMapping) Pairs() []MappingPair {
	return append([]MappingPair(nil), m.pairs...)
}

// Lookup returns the target value for a source value.
func (m OrderedMapping) Lookup(source string) (string, bool) {
	for _, pair := range m.pairs {
		if pair.Source == source {
			return pair.Target, true
		}
	}
	return "", false
}

// FirstSourceFor returns the first declared source value mapping to target.
func (m OrderedMapping) FirstSourceFor(target string) (string, bool) {
	for _, pair := range m.pairs {
		if pair.Target == target {
			return pair.Source, true
		}
	}
	return "", false
}

// UnmarshalJSON decodes a JSON object into ordered pairs. encoding/json
// map decoding would randomize iteration order, so the object is walked
// token by token instead.
func (m *OrderedMapping) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		m.pairs = nil
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	opening, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := opening.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("value mapping must be a JSON object, got %v", opening)
	}

	pairs := make([]MappingPair, 0)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}
		key, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("value mapping key must be a string, got %v", keyToken)
		}

		valueToken, err := decoder.Token()
		if err != nil {
			return err
		}

		var value string
		switch typed := valueToken.(type) {
		case string:
			value = typed
		case json.Number:
			value = typed.String()
		case bool:
			value = fmt.Sprintf("%t", typed)
		case nil:
			value = ""
		default:
			return fmt.Errorf("value mapping entry %q must be a scalar, got %v", key, valueToken)
		}

		pairs = append(pairs, MappingPair{Source: key, Target: value})
	}

	if _, err := decoder.Token(); err != nil {
		return err
	}

	m.pairs = pairs
	return nil
}

// MarshalJSON emits the entries as a JSON object in declaration order.
func (m OrderedMapping) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for i, pair := range m.pairs {
		if i > 0 {
			buffer.WriteByte(',')
		}
		key, err := json.Marshal(pair.Source)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(pair.Target)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')
		buffer.Write(value)
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// FieldMappingRule is one entry of the mapping table. The table file is a
// JSON array; rule order is significant and preserved through decode.
type FieldMappingRule struct {
	Kind            MappingKind       `json:"kind"`
	Strategy        SyncStrategy      `json:"strategy,omitempty"`
	SourceFieldID   string            `json:"sourceFieldId,omitempty"`
	TargetFieldID   string            `json:"targetFieldId,omitempty"`
	SourceFieldName string            `json:"sourceFieldName,omitempty"`
	TargetFieldName string            `json:"targetFieldName,omitempty"`
	TargetFieldType string            `json:"targetFieldType,omitempty"`
	SyncDirection   SyncDirection     `json:"syncDirection,omitempty"`
	ValueMapping    OrderedMapping    `json:"valueMapping,omitempty"`
	ReverseMapping  map[string]string `json:"reverseMapping,omitempty"`
	StaticValue     json.RawMessage   `json:"staticValue,omitempty"`
	TriggerOn       []TriggerEvent    `json:"triggerOn,omitempty"`
	MetadataType    MetadataType      `json:"metadataType,omitempty"`
	Prefix          string            `json:"prefix,omitempty"`
	Description     string            `json:"description,omitempty"`
}

// EffectiveStrategy applies the DIRECT_COPY default for omitted strategies.
func (r FieldMappingRule) EffectiveStrategy() SyncStrategy {
	if r.Strategy == "" {
		return SyncStrategyDirectCopy
	}
	return r.Strategy
}

// EffectiveDirection applies the S2T default for omitted directions.
func (r FieldMappingRule) EffectiveDirection() SyncDirection {
	if r.SyncDirection == "" {
		return SyncDirectionSourceToTarget
	}
	return r.SyncDirection
}

// AppliesTo reports whether the rule flows in the given concrete direction.
func (r FieldMappingRule) AppliesTo(direction SyncDirection) bool {
	effective := r.EffectiveDirection()
	return effective == direction || effective == SyncDirectionBidirectional
}

// TriggersOn reports whether the rule fires on the given event. An empty
// triggerOn list means both CREATE and UPDATE.
func (r FieldMappingRule) TriggersOn(event TriggerEvent) bool {
	if len(r.TriggerOn) == 0 {
		return true
	}
	for _, trigger := range r.TriggerOn {
		if trigger == event {
			return true
		}
	}
	return false
}

// IsSystemField reports whether the rule addresses a built-in Jira field.
func (r FieldMappingRule) IsSystemField() bool {
	return r.Kind == MappingKindSystemField
}

// CustomerIssueIDRule finds the single cross-reference metadata rule.
func CustomerIssueIDRule(rules []FieldMappingRule) (FieldMappingRule, bool) {
	for _, rule := range rules {
		if rule.EffectiveStrategy() == SyncStrategySyncMetadata && rule.MetadataType == MetadataTypeCustomerIssueID {
			return rule, true
		}
	}
	return FieldMappingRule{}, false
}

// LastSyncTimeRule finds the optional last-sync marker rule.
func LastSyncTimeRule(rules []FieldMappingRule) (FieldMappingRule, bool) {
	for _, rule := range rules {
		if rule.EffectiveStrategy() == SyncStrategySyncMetadata && rule.MetadataType == MetadataTypeLastSyncTime {
			return rule, true
		}
	}
	return FieldMappingRule{}, false
}

// MappingValidationError is returned when the mapping table is rejected.
type MappingValidationError struct {
	Issues []ConfigValidationIssue
}

func (e MappingValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid field mapping"
	}

	first := e.Issues[0]
	return fmt.Sprintf("invalid field mapping: %s (%s: %s)", first.Path, first.Code, first.Message)
}

// Code returns a stable typed error code.
func (MappingValidationError) Code() ConfigErrorCode {
	return ConfigErrorCodeValidationFailed
}

// ValidateMappingRules enforces the mapping table contract with
// deterministic issue ordering.
func ValidateMappingRules(rules []FieldMappingRule) error {
	issues := make([]ConfigValidationIssue, 0)

	customerIDCount := 0
	for i, rule := range rules {
		path := fmt.Sprintf("rules[%d]", i)
		issues = append(issues, validateMappingRule(path, rule)...)

		if rule.EffectiveStrategy() == SyncStrategySyncMetadata && rule.MetadataType == MetadataTypeCustomerIssueID {
			customerIDCount++
		}
	}

	switch {
	case customerIDCount == 0:
		issues = appendIssue(issues, "rules", ConfigValidationCodeRequired,
			"exactly one SYNC_METADATA rule with metadataType customer_issue_id is required; found none")
	case customerIDCount > 1:
		issues = appendIssue(issues, "rules", ConfigValidationCodeInvalidValue,
			fmt.Sprintf("exactly one SYNC_METADATA rule with metadataType customer_issue_id is required; found %d", customerIDCount))
	}

	if len(issues) == 0 {
		return nil
	}

	sortValidationIssues(issues)
	return MappingValidationError{Issues: issues}
}

func validateMappingRule(path string, rule FieldMappingRule) []ConfigValidationIssue {
	issues := make([]ConfigValidationIssue, 0)

	switch rule.Kind {
	case MappingKindSystemField, MappingKindCustomField:
	case "":
		issues = appendIssue(issues, path+".kind", ConfigValidationCodeRequired, "must be set")
	default:
		issues = appendIssue(issues, path+".kind", ConfigValidationCodeInvalidValue,
			"must be one of: system-field, custom-field")
	}

	strategy := rule.EffectiveStrategy()
	switch strategy {
	case SyncStrategyDirectCopy, SyncStrategyMappedSync, SyncStrategyStaticValue, SyncStrategySyncMetadata:
	default:
		issues = appendIssue(issues, path+".strategy", ConfigValidationCodeInvalidValue,
			"must be one of: DIRECT_COPY, MAPPED_SYNC, STATIC_VALUE, SYNC_METADATA")
	}

	switch rule.EffectiveDirection() {
	case SyncDirectionSourceToTarget, SyncDirectionTargetToSource, SyncDirectionBidirectional:
	default:
		issues = appendIssue(issues, path+".syncDirection", ConfigValidationCodeInvalidValue,
			"must be one of: S2T, T2S, BIDIRECTIONAL")
	}

	for i, trigger := range rule.TriggerOn {
		switch trigger {
		case TriggerEventCreate, TriggerEventUpdate:
		default:
			issues = appendIssue(issues, fmt.Sprintf("%s.triggerOn[%d]", path, i), ConfigValidationCodeInvalidValue,
				"must be one of: CREATE, UPDATE")
		}
	}

	switch strategy {
	case SyncStrategySyncMetadata:
		switch rule.MetadataType {
		case MetadataTypeCustomerIssueID, MetadataTypeLastSyncTime:
		case "":
			issues = appendIssue(issues, path+".metadataType", ConfigValidationCodeRequired,
				"must be set for SYNC_METADATA rules")
		default:
			issues = appendIssue(issues, path+".metadataType", ConfigValidationCodeInvalidValue,
				"must be one of: customer_issue_id, last_sync_time")
		}
		if strings.TrimSpace(rule.TargetFieldID) == "" {
			issues = appendIssue(issues, path+".targetFieldId", ConfigValidationCodeRequired,
				"must be set for SYNC_METADATA rules")
		}
	case SyncStrategyStaticValue:
		if len(rule.StaticValue) == 0 {
			issues = appendIssue(issues, path+".staticValue", ConfigValidationCodeRequired,
				"must be set for STATIC_VALUE rules")
		}
		if strings.TrimSpace(rule.TargetFieldID) == "" {
			issues = appendIssue(issues, path+".targetFieldId", ConfigValidationCodeRequired,
				"must be set")
		}
	default:
		if rule.MetadataType != "" {
			issues = appendIssue(issues, path+".metadataType", ConfigValidationCodeInvalidValue,
				"only valid for SYNC_METADATA rules")
		}
		if strings.TrimSpace(rule.SourceFieldID) == "" {
			issues = appendIssue(issues, path+".sourceFieldId", ConfigValidationCodeRequired,
				"must be set")
		}
		if strings.TrimSpace(rule.TargetFieldID) == "" {
			issues = appendIssue(issues, path+".targetFieldId", ConfigValidationCodeRequired,
				"must be set")
		}
	}

	if strategy == SyncStrategyMappedSync && rule.ValueMapping.Len() == 0 {
		issues = appendIssue(issues, path+".valueMapping", ConfigValidationCodeRequired,
			"must have at least one entry for MAPPED_SYNC rules")
	}

	return issues
}
