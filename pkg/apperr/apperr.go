// Package apperr defines the service-layer error taxonomy. Services wrap
// every failure in an *Error so handlers can map kinds to HTTP statuses
// without inspecting message text.
package apperr

import "errors"

// Kind enumerates failure categories.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

// Error is a categorized service failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional underlying cause
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input or out-of-range values.
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// Authentication reports bad credentials.
func Authentication(msg string) *Error { return &Error{Kind: KindAuthentication, Message: msg} }

// Authorization reports that the acting user lacks permission for the target.
func Authorization(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }

// NotFound reports an absent referenced entity.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Conflict reports an illegal state transition, capacity overflow, duplicate
// membership or entity-in-use.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Internal reports an unexpected failure, keeping the cause for logs.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
