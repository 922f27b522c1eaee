// pattern: Functional Core
package contracts

import (
	"fmt"
	"strings"
)

// SourceSearchQuery describes the source-side issue fetch.
type SourceSearchQuery struct {
	ProjectKey string
	IssueTypes []string

	// RecentWindow bounds the query to recently updated issues when set,
	// rendered as a JQL relative duration, e.g. "-1d" or "-4h".
	RecentWindow string

	// Key narrows the run to a single issue for debugging.
	Key string
}

// SourceSearchJQL renders the source fetch query. Issues arrive newest
// first so a bounded debug run sees the most recent activity.
func SourceSearchJQL(query SourceSearchQuery) string {
	parts := []string{fmt.Sprintf("project = %s", query.ProjectKey)}

	if len(query.IssueTypes) > 0 {
		filters := make([]string, 0, len(query.IssueTypes))
		for _, issueType := range query.IssueTypes {
			filters = append(filters, fmt.Sprintf("issuetype = %q", issueType))
		}
		parts = append(parts, "("+strings.Join(filters, " OR ")+")")
	}

	if query.RecentWindow != "" {
		parts = append(parts, fmt.Sprintf("updated >= %s", query.RecentWindow))
	}

	if query.Key != "" {
		parts = append(parts, fmt.Sprintf("key = %s", query.Key))
	}

	return strings.Join(parts, " AND ") + " ORDER BY updated DESC"
}

// SingleIssueJQL renders a one-issue lookup by key.
func SingleIssueJQL(key string) string {
	return fmt.Sprintf("key = %s", key)
}

// TargetSearchJQL renders the target fetch query: every issue carrying the
// cross-reference field. Display names need JQL quoting; raw field ids do
// not. Falls back to the whole project when no rule defines the field.
func TargetSearchJQL(projectKey string, fieldID string, fieldName string) string {
	switch {
	case fieldName != "":
		return fmt.Sprintf("project = %s AND %q is not EMPTY", projectKey, fieldName)
	case fieldID != "":
		return fmt.Sprintf("project = %s AND %s is not EMPTY", projectKey, fieldID)
	default:
		return fmt.Sprintf("project = %s", projectKey)
	}
}

// RecentWindowFromHours renders an hour count as a JQL relative duration.
func RecentWindowFromHours(hours int) string {
	if hours <= 0 {
		return ""
	}
	if hours%24 == 0 {
		return fmt.Sprintf("-%dd", hours/24)
	}
	return fmt.Sprintf("-%dh", hours)
}
