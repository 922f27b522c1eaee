// pattern: Functional Core
package adf

import (
	"encoding/json"
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/issue"
)

// Documents travel as generic JSON trees so node attributes and marks the
// walker does not understand survive a round trip untouched.

const (
	docType       = "doc"
	docVersion    = 1
	paragraphType = "paragraph"
	textType      = "text"
	hardBreakType = "hardBreak"
)

// PlainText flattens a rich-text document value to plain text. Each text
// run becomes one line; hard breaks become explicit newlines. Non-document
// values report false.
func PlainText(value issue.FieldValue) (string, bool) {
	root, ok := decodeDocument(value)
	if !ok {
		return "", false
	}

	content, ok := root["content"].([]any)
	if !ok {
		return "", false
	}

	parts := make([]string, 0)
	collectText(content, &parts)
	return strings.Join(parts, "\n"), true
}

func collectText(content []any, parts *[]string) {
	for _, item := range content {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch {
		case node["type"] == textType:
			if text, ok := node["text"].(string); ok {
				*parts = append(*parts, text)
			}
		case node["content"] != nil:
			if nested, ok := node["content"].([]any); ok {
				collectText(nested, parts)
			}
		case node["type"] == hardBreakType:
			*parts = append(*parts, "\n")
		}
	}
}

// FromText builds a rich-text document from plain text. Each non-empty
// line becomes one paragraph; blank input becomes a single empty
// paragraph.
func FromText(text string) issue.FieldValue {
	paragraphs := make([]any, 0)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		paragraphs = append(paragraphs, map[string]any{
			"type": paragraphType,
			"content": []any{
				map[string]any{"type": textType, "text": line},
			},
		})
	}

	if len(paragraphs) == 0 {
		paragraphs = append(paragraphs, map[string]any{
			"type":    paragraphType,
			"content": []any{},
		})
	}

	return issue.FromAny(map[string]any{
		"type":    docType,
		"version": docVersion,
		"content": paragraphs,
	})
}

// Canonicalize re-encodes a document value in compact canonical form.
func Canonicalize(value issue.FieldValue) (issue.FieldValue, error) {
	root, ok := decodeDocument(value)
	if !ok {
		return issue.Absent, &Error{
			Code:       ErrorCodeNotADocument,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "value is not a rich-text document",
		}
	}
	return issue.FromAny(root), nil
}

func decodeDocument(value issue.FieldValue) (map[string]any, bool) {
	if value.Kind() != issue.KindObject {
		return nil, false
	}
	var root map[string]any
	if err := json.Unmarshal(value.Raw(), &root); err != nil {
		return nil, false
	}
	if root["type"] != docType {
		return nil, false
	}
	return root, true
}
