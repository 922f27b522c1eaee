// pattern: Imperative Shell
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

// Read loads and validates bridge.config.json. Unknown keys and trailing
// content are rejected so a typo never silently drops a setting.
func Read(path string) (contracts.Config, error) {
	resolvedPath := resolveConfigPath(path)
	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return contracts.Config{}, &Error{Code: ErrorCodeReadFailed, Path: resolvedPath, Err: err}
	}

	var config contracts.Config
	if err := decodeStrict(raw, &config); err != nil {
		return contracts.Config{}, &Error{Code: ErrorCodeParseFailed, Path: resolvedPath, Err: err}
	}

	if err := contracts.ValidateConfig(config); err != nil {
		return contracts.Config{}, &Error{Code: ErrorCodeValidationFailed, Path: resolvedPath, Err: err}
	}

	return config, nil
}

// ReadMappingRules loads and validates the field mapping table. The file
// is a bare JSON array; rule order is significant and preserved.
func ReadMappingRules(path string) ([]contracts.FieldMappingRule, error) {
	resolvedPath := resolveMappingPath(path)
	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, &Error{Code: ErrorCodeReadFailed, Path: resolvedPath, Err: err}
	}

	var rules []contracts.FieldMappingRule
	if err := decodeStrict(raw, &rules); err != nil {
		return nil, &Error{Code: ErrorCodeParseFailed, Path: resolvedPath, Err: err}
	}

	if err := contracts.ValidateMappingRules(rules); err != nil {
		return nil, &Error{Code: ErrorCodeValidationFailed, Path: resolvedPath, Err: err}
	}

	return rules, nil
}

func decodeStrict(raw []byte, into any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected trailing JSON content")
		}
		return fmt.Errorf("failed to decode trailing JSON content: %w", err)
	}

	return nil
}

func resolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return contracts.ConfigFilePath
	}
	return trimmed
}

func resolveMappingPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return contracts.DefaultMappingFilePath
	}
	return trimmed
}
