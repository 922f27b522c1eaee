package issue

import (
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

const maxStagingNameLen = 255

// ValidateIssueKey rejects strings that do not look like Jira issue keys.
// Staging directories are named after issue keys, so anything else is
// refused before it reaches the filesystem.
func ValidateIssueKey(key string) error {
	if !contracts.JiraIssueKeyPattern.MatchString(key) {
		return &ValueError{
			Code:       ValueErrorCodeInvalidIssueKey,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "issue key does not match the PROJECT-123 format",
		}
	}
	return nil
}

// SafeStagingName rejects attachment filenames that could escape or
// corrupt the staging directory. Remote filenames are attacker-adjacent
// input; path separators, traversal tokens and control bytes are refused
// rather than rewritten.
func SafeStagingName(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return &ValueError{
			Code:       ValueErrorCodeUnsafeFilename,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "attachment filename is empty",
		}
	}
	if len(filename) > maxStagingNameLen {
		return &ValueError{
			Code:       ValueErrorCodeUnsafeFilename,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "attachment filename exceeds the filesystem name limit",
		}
	}
	if strings.ContainsAny(filename, "/\\") {
		return &ValueError{
			Code:       ValueErrorCodeUnsafeFilename,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "attachment filename contains a path separator",
		}
	}
	if filename == "." || filename == ".." {
		return &ValueError{
			Code:       ValueErrorCodeUnsafeFilename,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "attachment filename is a path traversal token",
		}
	}
	for _, char := range filename {
		if char < 0x20 || char == 0x7f {
			return &ValueError{
				Code:       ValueErrorCodeUnsafeFilename,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "attachment filename contains control characters",
			}
		}
	}
	return nil
}
