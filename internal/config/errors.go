package config

import (
	"errors"
	"fmt"
)

// ErrorCode distinguishes the load stages: reading the file, decoding it,
// checking it against the workspace schema, and sourcing the env file.
type ErrorCode string

const (
	ErrorCodeReadFailed       ErrorCode = "config_read_failed"
	ErrorCodeParseFailed      ErrorCode = "config_parse_failed"
	ErrorCodeValidationFailed ErrorCode = "config_validation_failed"
	ErrorCodeEnvLoadFailed    ErrorCode = "env_load_failed"
)

var errorPrefixes = map[ErrorCode]string{
	ErrorCodeReadFailed:       "failed to read config",
	ErrorCodeParseFailed:      "failed to parse config",
	ErrorCodeValidationFailed: "invalid configuration",
	ErrorCodeEnvLoadFailed:    "failed to load env file",
}

type Error struct {
	Code ErrorCode
	Path string
	Err  error
}

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	prefix, ok := errorPrefixes[err.Code]
	if !ok {
		prefix = "config error"
	}
	if err.Path != "" {
		prefix = fmt.Sprintf("%s at %s", prefix, err.Path)
	}
	if err.Err == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, err.Err)
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func IsErrorCode(err error, code ErrorCode) bool {
	var loadErr *Error
	if !errors.As(err, &loadErr) {
		return false
	}
	return loadErr.Code == code
}

// ResolveErrorCode covers the second stage, turning a parsed config plus
// environment and flags into runtime settings for both sites.
type ResolveErrorCode string

const (
	ResolveErrorCodeInvalidConfig ResolveErrorCode = "invalid_config"
	ResolveErrorCodeMissingToken  ResolveErrorCode = "missing_api_token"
)

type ResolveError struct {
	Code    ResolveErrorCode
	Message string
	Err     error
}

func (err *ResolveError) Error() string {
	if err == nil {
		return ""
	}
	if err.Err == nil {
		return "failed to resolve runtime settings: " + err.Message
	}
	return fmt.Sprintf("failed to resolve runtime settings: %s: %v", err.Message, err.Err)
}

func (err *ResolveError) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func IsResolveErrorCode(err error, code ResolveErrorCode) bool {
	var resolveErr *ResolveError
	if !errors.As(err, &resolveErr) {
		return false
	}
	return resolveErr.Code == code
}
