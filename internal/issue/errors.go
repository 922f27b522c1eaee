package issue

import (
	"errors"
	"fmt"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

type ValueErrorCode string

const (
	ValueErrorCodeInvalidIssueKey ValueErrorCode = "invalid_issue_key"
	ValueErrorCodeUnsafeFilename  ValueErrorCode = "unsafe_filename"
	ValueErrorCodeInvalidValue    ValueErrorCode = "invalid_value"
)

// ValueError is a typed deterministic model-level error.
type ValueError struct {
	Code       ValueErrorCode
	ReasonCode contracts.ReasonCode
	Message    string
	Err        error
}

func (e *ValueError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValueError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func IsValueErrorCode(err error, code ValueErrorCode) bool {
	var valueErr *ValueError
	if !errors.As(err, &valueErr) {
		return false
	}
	return valueErr.Code == code
}
