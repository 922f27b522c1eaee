// pattern: Functional Core
package adf

import (
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/issue"
)

// PrefixPlainText prepends "prefix " to plain text unless the text already
// starts with the prefix.
func PrefixPlainText(text string, prefix string) string {
	if prefix == "" || strings.HasPrefix(text, prefix) {
		return text
	}
	return prefix + " " + text
}

// WithLeadingText inserts a prefix text run before the first text node of
// a document. Already-prefixed documents come back unchanged, so repeated
// syncs do not stack markers. Documents without any text node get the
// prefix as a leading run of the first paragraph, or a fresh paragraph
// when none exists. Non-document values report false.
func WithLeadingText(value issue.FieldValue, prefix string) (issue.FieldValue, bool) {
	if prefix == "" {
		return value, value.IsDocument()
	}

	root, ok := decodeDocument(value)
	if !ok {
		return value, false
	}

	prefixNode := map[string]any{"type": textType, "text": prefix + " "}

	content, _ := root["content"].([]any)
	for _, item := range content {
		paragraph, ok := item.(map[string]any)
		if !ok || paragraph["type"] != paragraphType {
			continue
		}
		runs, _ := paragraph["content"].([]any)
		for i, run := range runs {
			node, ok := run.(map[string]any)
			if !ok || node["type"] != textType {
				continue
			}
			text, _ := node["text"].(string)
			if strings.HasPrefix(text, prefix) {
				return value, true
			}
			paragraph["content"] = append(runs[:i:i], append([]any{prefixNode}, runs[i:]...)...)
			return issue.FromAny(root), true
		}
	}

	// No text node anywhere. Lead the first paragraph, or start one.
	if len(content) > 0 {
		if paragraph, ok := content[0].(map[string]any); ok && paragraph["type"] == paragraphType {
			runs, _ := paragraph["content"].([]any)
			paragraph["content"] = append([]any{prefixNode}, runs...)
			return issue.FromAny(root), true
		}
	}

	root["content"] = append([]any{
		map[string]any{
			"type":    paragraphType,
			"content": []any{prefixNode},
		},
	}, content...)
	return issue.FromAny(root), true
}
