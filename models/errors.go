package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	// ErrCodeRender: rendering service unreachable, timed out, or returned
	// a malformed/missing screenshot reference.
	ErrCodeRender = "RENDER_FAILED"

	// ErrCodeSelectorDiscovery: extraction service could not produce a
	// well-formed selector choice.
	ErrCodeSelectorDiscovery = "SELECTOR_DISCOVERY_FAILED"

	// ErrCodeExtraction: extraction service could not produce a well-formed
	// holdings record (schema mismatch, invalid JSON, empty content).
	ErrCodeExtraction = "EXTRACTION_FAILED"

	// ErrCodeValidation: a successfully-parsed record is semantically
	// incomplete (no quantity / data_found false).
	ErrCodeValidation = "VALIDATION_INCOMPLETE"

	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"

	// LLM-provider error codes.
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited = "LLM_RATE_LIMITED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ExtractError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// NewExtractError creates a new ExtractError.
func NewExtractError(code, message string, err error) *ExtractError {
	return &ExtractError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ExtractError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// HasCode reports whether any ExtractError in err's chain carries the given
// code. Stage wrappers put their own code on top, so a single errors.As is
// not enough to see the cause underneath.
func HasCode(err error, code string) bool {
	for err != nil {
		var ee *ExtractError
		if errors.As(err, &ee) {
			if ee.Code == code {
				return true
			}
			err = ee.Err
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}
