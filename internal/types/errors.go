package types

import (
	"errors"
	"fmt"
)

const (
	CodeValidation          = "VALIDATION"
	CodePoolExhausted       = "POOL_EXHAUSTED"
	CodeUnimplementedMethod = "UNIMPLEMENTED_METHOD"
	CodeUnknownContainer    = "UNKNOWN_CONTAINER"
	CodeHostUnavailable     = "HOST_UNAVAILABLE"
	CodeSurfaceFailure      = "SURFACE_FAILURE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// HasCode reports whether err wraps a CodedError carrying code.
func HasCode(err error, code string) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == code
}
