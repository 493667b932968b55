// Package apperr defines the failure taxonomy shared by the domain services.
//
// Every failure the boundary may report carries a Kind, which decides how the
// caller should react (fix input, re-authenticate, retry), and a Reason, a
// short stable string the client can branch on ("cart-empty",
// "product-not-found", ...).
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies a failure.
type Kind uint8

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota
	// KindValidation marks missing or malformed input.
	KindValidation
	// KindNotFound marks an absent entity or one the caller does not own.
	KindNotFound
	// KindAuth marks a missing, invalid or expired credential.
	KindAuth
	// KindForbidden marks an authenticated caller lacking the required role.
	KindForbidden
	// KindConflict marks a duplicate or a state that forbids the request.
	KindConflict
	// KindPersistence marks an unavailable or failing store. Safe to retry.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Values created with New are meant to be
// package-level sentinels compared with errors.Is.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

// New returns a classified sentinel error.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Reason + ": " + e.cause.Error()
	}
	return e.Reason
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is the same sentinel. Wrapped copies produced by
// Wrap match the sentinel they were derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// Persistence classifies a store failure under the given reason.
func Persistence(err error, reason string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindPersistence, Reason: reason, cause: err}
}

// Wrap attaches cause to a copy of sentinel, keeping its kind and reason.
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, Reason: sentinel.Reason, cause: cause}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns the reason of the first classified error in err's chain,
// or fallback when err is unclassified.
func ReasonOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return fallback
}
