package payload

import (
	"time"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/issue"
)

// CreateInput carries everything a create payload is built from.
type CreateInput struct {
	Source           issue.Issue
	TargetProjectKey string
	IssueType        string
	Rules            []contracts.FieldMappingRule
	Now              time.Time
}

// CreateResult is the create payload plus the fields deferred to the
// post-create update pass. Create screens frequently omit metadata and
// static fields, so those fields are applied one by one after the issue
// exists instead of risking the whole create call.
type CreateResult struct {
	Fields   issue.Fields
	Deferred []DeferredField
}

// DeferredField is one post-create single-field update.
type DeferredField struct {
	FieldID string
	Value   issue.FieldValue
	Rule    contracts.FieldMappingRule
}

// UpdateInput carries everything an update payload is built from.
type UpdateInput struct {
	Source    issue.Issue
	Target    issue.Issue
	Direction contracts.SyncDirection
	Rules     []contracts.FieldMappingRule
	Now       time.Time
}
