package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the handling it requires, not by its origin.
type Kind string

const (
	// KindValidation marks malformed or out-of-bounds user input. The user
	// gets a corrective message; nothing is written.
	KindValidation Kind = "VALIDATION"
	// KindNotFound marks a missing prerequisite, typically no active goal.
	KindNotFound Kind = "NOT_FOUND"
	// KindDuplicate marks an already-recorded charge id. Callers treat it
	// as success.
	KindDuplicate Kind = "DUPLICATE"
	// KindTransient marks storage or network failures. Safe to re-trigger.
	KindTransient Kind = "TRANSIENT"
)

// Error carries a kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the kind as an uppercase token for err_code log fields.
func (e *Error) Code() string { return string(e.Kind) }

// Is reports kind equality so errors.Is works against kind sentinels.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Msg == "" && other.Err == nil && other.Kind == e.Kind
	}
	return false
}

// NewValidation builds a Validation error with a user-correctable message.
func NewValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NewNotFound builds a NotFound error.
func NewNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// NewDuplicate builds a Duplicate error around an existing cause.
func NewDuplicate(msg string, err error) *Error {
	return &Error{Kind: KindDuplicate, Msg: msg, Err: err}
}

// NewTransient wraps a storage or network failure.
func NewTransient(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, unwrapping as needed.
// Unclassified errors report KindTransient: the safe default is
// "apologize and let the user retry".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
