package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for HTTP mapping and for callers that branch on
// the category rather than the message.
type Kind int

const (
	// Internal is the zero value so an unclassified error maps to 500.
	Internal Kind = iota
	NotFound
	InvalidInput
	PermissionDenied
	Conflict
)

// Error is the categorized failure returned by the lifecycle engines.
// Type is the short machine-facing label ("Issue not found", "Invalid updates")
// surfaced as error_type in the response envelope.
type Error struct {
	Kind    Kind
	Type    string
	Message string
	Details interface{}
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, typ, message string) *Error {
	return &Error{Kind: kind, Type: typ, Message: message}
}

func NewNotFound(typ, message string) *Error {
	return New(NotFound, typ, message)
}

func NewInvalidInput(typ, message string) *Error {
	return New(InvalidInput, typ, message)
}

func NewPermissionDenied(typ, message string) *Error {
	return New(PermissionDenied, typ, message)
}

func NewConflict(typ, message string) *Error {
	return New(Conflict, typ, message)
}

func NewInternal(typ, message string, err error) *Error {
	return &Error{Kind: Internal, Type: typ, Message: message, Err: err}
}

// WithDetails attaches structured details for the response envelope.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// KindOf extracts the Kind from err, walking wrapped errors. Anything that is
// not an *Error is Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// AsError returns the *Error inside err, or nil.
func AsError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
