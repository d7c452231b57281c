package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Code classifies an Error so callers can branch on it without string matching
type Code int

const (
	Internal   Code = http.StatusInternalServerError
	NotFound   Code = http.StatusNotFound
	Forbidden  Code = http.StatusForbidden
	Validation Code = http.StatusBadRequest
	// Conflict is returned when a unique index would be violated by a mutation
	Conflict Code = http.StatusConflict
	// Precondition is returned when a mutation is attempted against a document missing
	// state it requires (an update with no $id, an update targeting a missing document)
	Precondition Code = http.StatusPreconditionFailed
	// Config is returned when a collection is constructed with mutually exclusive options
	Config Code = http.StatusUnprocessableEntity
)

// Error is a custom error carrying a classification code and a message trail
type Error struct {
	Code     Code     `json:"code"`
	Messages []string `json:"messages"`
	Err      error    `json:"err,omitempty"`
}

// Error returns the Error as a json string
func (e *Error) Error() string {
	if e.Code == 0 {
		e.Code = http.StatusOK
	}
	bits, _ := json.Marshal(e)
	return string(bits)
}

// Unwrap satisfies errors.Unwrap so errors.Is/As work against the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// RemoveError removes the wrapped cause and leaves the code and messages
func (e *Error) RemoveError() *Error {
	return &Error{
		Code:     e.Code,
		Messages: e.Messages,
		Err:      nil,
	}
}

// Extract extracts the custom Error from the given error
func Extract(err error) *Error {
	e, ok := err.(*Error)
	if !ok {
		return &Error{
			Code:     0,
			Messages: nil,
			Err:      err,
		}
	}
	return e
}

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	return Extract(err).Code == code
}

// New creates a new Error with the given code and formatted message
func New(code Code, msg string, args ...any) error {
	return &Error{
		Code:     code,
		Messages: []string{fmt.Sprintf(msg, args...)},
	}
}

// Wrap wraps the given error. An *Error is annotated in place (message appended, code
// replaced only by a non-zero override) and returned; any other error becomes the cause
// of a new *Error
func Wrap(err error, code Code, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if ok {
		if msg != "" {
			e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
		}
		if code > 0 {
			e.Code = code
		}
		return e
	}
	e = &Error{
		Code: code,
		Err:  err,
	}
	if msg != "" {
		e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
	}
	return e
}

// TypeError reports a bad argument type or shape - spec.md "TypeError"
func TypeError(msg string, args ...any) error {
	return New(Validation, msg, args...)
}

// StateError reports a document missing state a mutation requires - spec.md "StateError"
func StateError(msg string, args ...any) error {
	return New(Precondition, msg, args...)
}

// ConstraintError reports a unique index collision - spec.md "ConstraintError"
func ConstraintError(msg string, args ...any) error {
	return New(Conflict, msg, args...)
}

// ConfigError reports mutually exclusive constructor options - spec.md "ConfigError"
func ConfigError(msg string, args ...any) error {
	return New(Config, msg, args...)
}
