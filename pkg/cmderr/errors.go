// Package cmderr defines the error taxonomy shared by the command bus and its handlers.
package cmderr

import (
	"errors"
	"fmt"
)

// Kind is the categorical class of a command error.
type Kind string

const (
	// KindUnknownCommand is a registry miss. Programming error.
	KindUnknownCommand Kind = "UNKNOWN_COMMAND"
	// KindDuplicateRegistration is returned when an identifier is bound twice.
	KindDuplicateRegistration Kind = "DUPLICATE_REGISTRATION"
	// KindDecode is a codec failure in either direction: a value that cannot be
	// encoded, or a payload that does not decode into the expected type.
	// Programming error.
	KindDecode Kind = "DECODE_ERROR"
	// KindHandler is a domain failure returned by a handler.
	KindHandler Kind = "HANDLER_ERROR"
	// KindWorkflowAssumption signals a broken precondition inside a workflow helper.
	KindWorkflowAssumption Kind = "WORKFLOW_ASSUMPTION_VIOLATED"
	// KindAbandoned is returned to a caller whose context ended before the envelope was ready.
	KindAbandoned Kind = "ABANDONED"
)

// Handler error codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeConflict         = "CONFLICT"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeGatherFailed     = "GATHER_FAILED"
	CodeInternal         = "INTERNAL"
)

// Error is a structured command error. Code equals the kind for non-handler kinds.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" || e.Code == string(e.Kind) {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind) + "/" + e.Code + ": " + e.Message
}

// Is matches another *Error with the same kind and code, so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// New creates an error of a non-handler kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: fmt.Sprintf(format, args...)}
}

// Handler creates a handler error with the given code.
func Handler(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindHandler, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a NOT_FOUND handler error.
func NotFound(format string, args ...interface{}) *Error {
	return Handler(CodeNotFound, format, args...)
}

// PermissionDenied creates a PERMISSION_DENIED handler error.
func PermissionDenied(format string, args ...interface{}) *Error {
	return Handler(CodePermissionDenied, format, args...)
}

// Conflict creates a CONFLICT handler error.
func Conflict(format string, args ...interface{}) *Error {
	return Handler(CodeConflict, format, args...)
}

// InvalidArgument creates an INVALID_ARGUMENT handler error.
func InvalidArgument(format string, args ...interface{}) *Error {
	return Handler(CodeInvalidArgument, format, args...)
}

// GatherFailed creates a GATHER_FAILED handler error.
func GatherFailed(format string, args ...interface{}) *Error {
	return Handler(CodeGatherFailed, format, args...)
}

// Internal creates an INTERNAL handler error.
func Internal(format string, args ...interface{}) *Error {
	return Handler(CodeInternal, format, args...)
}

// From converts any error into an *Error. Errors that are not already
// command errors become INTERNAL handler errors carrying the original text.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return Internal("%s", err.Error())
}

// KindOf returns the kind of err, or "" when err is not a command error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// CodeOf returns the code of err, or "" when err is not a command error.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND handler error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}
