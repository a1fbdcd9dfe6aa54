package errors

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a failure class across the pipeline.
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigParse   ErrorCode = "CONFIG_PARSE"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Snippet validation errors (recoverable: pipeline falls back)
	ErrCodeValidationFence        ErrorCode = "VALIDATION_FENCE"
	ErrCodeValidationFullPage     ErrorCode = "VALIDATION_FULL_PAGE"
	ErrCodeValidationForbiddenTag ErrorCode = "VALIDATION_FORBIDDEN_TAG"
	ErrCodeValidationMarkerCount  ErrorCode = "VALIDATION_MARKER_COUNT"
	ErrCodeValidationMalformed    ErrorCode = "VALIDATION_MALFORMED"

	// Page errors
	ErrCodeMarkerNotFound         ErrorCode = "MARKER_NOT_FOUND"
	ErrCodeTimestampTargetMissing ErrorCode = "TIMESTAMP_TARGET_MISSING"
	ErrCodePageRead               ErrorCode = "PAGE_READ"
	ErrCodePageWrite              ErrorCode = "PAGE_WRITE"

	// Model errors
	ErrCodeModelNotFound ErrorCode = "MODEL_NOT_FOUND"
	ErrCodeModelAPIError ErrorCode = "MODEL_API_ERROR"
	ErrCodeModelTimeout  ErrorCode = "MODEL_TIMEOUT"

	// State errors
	ErrCodeStateRead  ErrorCode = "STATE_READ"
	ErrCodeStateWrite ErrorCode = "STATE_WRITE"

	// Commit errors
	ErrCodeCommitFailed ErrorCode = "COMMIT_FAILED"

	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error is a structured pagetender error.
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	Recoverable bool
}

// New creates a new structured error.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Context:     make(map[string]any),
		Recoverable: isValidationCode(code),
	}
}

// Wrap wraps an existing error with pagetender error context.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:        code,
		Message:     message,
		Underlying:  err,
		Context:     make(map[string]any),
		Recoverable: isValidationCode(code),
	}
}

// WithContext adds a context key-value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, v))
			first = false
		}
		sb.WriteString("}")
	}

	if e.Underlying != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Underlying))
	}

	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// isValidationCode reports whether a code belongs to the snippet
// validation family. Validation failures degrade to the fallback
// snippet; everything else aborts the run.
func isValidationCode(code ErrorCode) bool {
	return strings.HasPrefix(string(code), "VALIDATION_")
}

// IsCode checks if an error carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	ptErr, ok := err.(*Error)
	if !ok {
		return false
	}
	return ptErr.Code == code
}

// GetCode extracts the error code from an error.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	ptErr, ok := err.(*Error)
	if !ok {
		return ErrCodeInternal
	}
	return ptErr.Code
}

// IsRecoverable reports whether the pipeline may continue with the
// fallback snippet after this error.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	ptErr, ok := err.(*Error)
	if !ok {
		return false
	}
	return ptErr.Recoverable
}
