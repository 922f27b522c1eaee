// pattern: Functional Core
package contracts

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// JiraTimestampLayout is the datetime format Jira reports and accepts on
// system and custom datetime fields.
const JiraTimestampLayout = "2006-01-02T15:04:05.000-0700"

// jiraTimestampFallbacks covers variants seen from older deployments.
var jiraTimestampFallbacks = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
}

// ParseJiraTimestamp parses a Jira-reported datetime. The canonical layout
// is tried first, then RFC3339 variants.
func ParseJiraTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if parsed, err := time.Parse(JiraTimestampLayout, trimmed); err == nil {
		return parsed, nil
	}
	for _, layout := range jiraTimestampFallbacks {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", trimmed)
}

// FormatJiraTimestamp renders a time in the canonical Jira layout.
func FormatJiraTimestamp(value time.Time) string {
	return value.Format(JiraTimestampLayout)
}

// CompareJiraTimestamps orders two Jira timestamps. Parsed instants
// compare when both sides parse; otherwise the raw strings compare
// lexically, which is order-preserving for Jira's fixed-width layout
// within one zone. Returns -1, 0 or 1.
func CompareJiraTimestamps(a string, b string) int {
	timeA, errA := ParseJiraTimestamp(a)
	timeB, errB := ParseJiraTimestamp(b)

	if errA == nil && errB == nil {
		switch {
		case timeA.Before(timeB):
			return -1
		case timeA.After(timeB):
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(a, b)
}

// AttachmentPrefixPattern matches the owning-project marker that staged and
// mirrored attachments carry, e.g. "[CUX] report.pdf".
var AttachmentPrefixPattern = regexp.MustCompile(`^\[[^\]]+\]\s+(.+)$`)

// StripAttachmentPrefix removes a leading [ANY-KEY] marker from a filename.
// Filenames without a marker pass through unchanged. The stripped name is
// the merge identity: the same stripped name on both sites is treated as
// the same attachment.
func StripAttachmentPrefix(filename string) string {
	match := AttachmentPrefixPattern.FindStringSubmatch(filename)
	if len(match) == 2 {
		return match[1]
	}
	return filename
}

// PrefixedAttachmentName renders a filename with the owning-project marker,
// replacing any marker already present.
func PrefixedAttachmentName(filename string, projectKey string) string {
	return fmt.Sprintf("[%s] %s", projectKey, StripAttachmentPrefix(filename))
}

// HasAttachmentPrefix reports whether a filename already carries a marker.
func HasAttachmentPrefix(filename string) bool {
	return AttachmentPrefixPattern.MatchString(filename)
}
