package jira

import (
	"errors"
	"fmt"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	httpclient "github.com/pweiskircher/jira-bridge/internal/http"
)

// ErrorCode classifies where a site call failed: before the wire, on the
// wire, or while reading what came back.
type ErrorCode string

const (
	ErrorCodeInvalidInput     ErrorCode = "invalid_input"
	ErrorCodeRequestEncode    ErrorCode = "request_encode_failed"
	ErrorCodeRequestBuild     ErrorCode = "request_build_failed"
	ErrorCodeTransport        ErrorCode = "transport_error"
	ErrorCodeAuthFailed       ErrorCode = "auth_failed"
	ErrorCodeUnexpectedStatus ErrorCode = "unexpected_status"
	ErrorCodeResponseDecode   ErrorCode = "response_decode_failed"
)

// Error is the adapter's failure type. ReasonCode, when set, flows into the
// per-issue report; rendering always passes through the owning site's
// redactor so tokens and auth headers never reach logs or envelopes.
type Error struct {
	Code       ErrorCode
	ReasonCode contracts.ReasonCode
	StatusCode int
	Message    string
	Err        error
	redactor   httpclient.Redactor
}

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	message := err.Message
	if message == "" {
		message = "jira operation failed"
	}
	if err.Err != nil {
		message = fmt.Sprintf("%s: %v", message, err.Err)
	}
	return err.redactor.Redact(message)
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

// IsErrorCode reports whether err wraps an adapter Error with the given
// code.
func IsErrorCode(err error, code ErrorCode) bool {
	var siteErr *Error
	if !errors.As(err, &siteErr) {
		return false
	}
	return siteErr.Code == code
}
