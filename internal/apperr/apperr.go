// Package apperr defines the error taxonomy shared by the data-access layer.
package apperr

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers. The HTTP layer maps these to
// transport status codes; this core never does.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeDuplicate      = "DUPLICATE_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeNotFound       = "NOT_FOUND_ERROR"
	CodeDatabase       = "DATABASE_ERROR"
	CodeConnection     = "CONNECTION_VALIDATION_ERROR"
)

type Error struct {
	Code    string
	Message string
	Fields  []string // field-level messages (validation only)
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match on code so callers can compare against sentinels
// built with the same constructor.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func Validation(fields ...string) *Error {
	msg := "validation failed"
	if len(fields) == 1 {
		msg = fields[0]
	}
	return &Error{Code: CodeValidation, Message: msg, Fields: fields}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func Duplicate(what string) *Error {
	return &Error{Code: CodeDuplicate, Message: what + " already exists"}
}

// Authentication returns the single uniform credential failure. One message
// for unknown email, wrong password and deactivated accounts, so callers
// cannot enumerate accounts.
func Authentication() *Error {
	return &Error{Code: CodeAuthentication, Message: "invalid credentials"}
}

func Database(op string, cause error) *Error {
	return &Error{Code: CodeDatabase, Message: "store operation failed: " + op, Cause: cause}
}

func Connection(msg string, cause error) *Error {
	return &Error{Code: CodeConnection, Message: msg, Cause: cause}
}

// Code extracts the stable code from any error; unknown errors are
// classified as DATABASE_ERROR.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeDatabase
}
