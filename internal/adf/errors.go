package adf

import (
	"errors"
	"fmt"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

type ErrorCode string

const (
	ErrorCodeMalformedDocument ErrorCode = "malformed_document"
	ErrorCodeNotADocument      ErrorCode = "not_a_document"
)

// Error is a typed document-handling error with stable reason-code mapping.
type Error struct {
	Code       ErrorCode
	ReasonCode contracts.ReasonCode
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func IsErrorCode(err error, code ErrorCode) bool {
	var adfErr *Error
	if !errors.As(err, &adfErr) {
		return false
	}
	return adfErr.Code == code
}
