package httpclient

import (
	"sort"
	"strings"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor scrubs site credentials out of text before it reaches an
// error message or a log line. Each bridged site contributes its API
// token plus the credential strings derived from it, and derived forms
// embed the raw token, so replacement runs longest secret first; a
// shorter secret must never split a longer one and leave its tail
// readable.
type Redactor struct {
	secrets []string
}

func NewRedactor(secrets ...string) Redactor {
	unique := make([]string, 0, len(secrets))
	seen := make(map[string]struct{}, len(secrets))
	for _, secret := range secrets {
		trimmed := strings.TrimSpace(secret)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return len(unique[i]) > len(unique[j])
	})

	return Redactor{secrets: unique}
}

// Redact replaces every occurrence of every configured secret.
func (r Redactor) Redact(value string) string {
	if value == "" || len(r.secrets) == 0 {
		return value
	}

	redacted := value
	for _, secret := range r.secrets {
		redacted = strings.ReplaceAll(redacted, secret, RedactedPlaceholder)
	}
	return redacted
}
