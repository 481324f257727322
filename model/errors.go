package model

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrValidation        ErrorCode = "VALIDATION"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrConflict          ErrorCode = "CONFLICT"
	ErrAuthentication    ErrorCode = "AUTHENTICATION"
	ErrInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrUpstream          ErrorCode = "UPSTREAM"
)

// CodedError is a stable error with a machine-readable code and a human message.
//
// Every domain failure crosses the API boundary as a CodedError; none are
// retried automatically.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

func Errorf(code ErrorCode, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code carried by err, or "" when err is not coded.
func CodeOf(err error) ErrorCode {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }
