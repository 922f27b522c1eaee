// pattern: Functional Core
package issue

import (
	"time"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

// Issue is one remote issue as fetched from a site. Fields are kept in
// their dynamic JSON shapes; the updated timestamp is the sole
// conflict-ordering signal.
type Issue struct {
	ID     string
	Key    string
	Fields Fields
}

// Fields maps field ids to values.
type Fields map[string]FieldValue

// Field returns the value for a field id. Missing ids yield the absent
// value.
func (f Fields) Field(id string) FieldValue {
	if f == nil {
		return Absent
	}
	return f[id]
}

// Field returns the value for a field id on the issue.
func (i Issue) Field(id string) FieldValue {
	return i.Fields.Field(id)
}

// UpdatedRaw returns the updated timestamp as reported by the site.
func (i Issue) UpdatedRaw() string {
	text, _ := i.Field("updated").Scalar()
	return text
}

// UpdatedAt parses the updated timestamp.
func (i Issue) UpdatedAt() (time.Time, bool) {
	raw := i.UpdatedRaw()
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := contracts.ParseJiraTimestamp(raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Summary returns the summary field text.
func (i Issue) Summary() string {
	text, _ := i.Field("summary").ExtractText()
	return text
}

// IssueTypeName returns the issue type display name.
func (i Issue) IssueTypeName() string {
	text, _ := i.Field("issuetype").ExtractText()
	return text
}

// StatusName returns the status display name.
func (i Issue) StatusName() string {
	text, _ := i.Field("status").ExtractText()
	return text
}

// CompareUpdated orders two issues by their updated timestamps.
// Returns -1, 0 or 1.
func CompareUpdated(a Issue, b Issue) int {
	return contracts.CompareJiraTimestamps(a.UpdatedRaw(), b.UpdatedRaw())
}
