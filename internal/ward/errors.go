// Package ward defines the patient dashboard domain: patients, admission
// episodes, medications, time-series clinical records and the error taxonomy
// shared by every data hook.
package ward

import (
	"errors"
	"fmt"
)

// Kind classifies a failure surfaced to the user
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound means the requested id has no matching record
	KindNotFound
	// KindStore means the underlying query failed (network, permissions, malformed query)
	KindStore
	// KindValidation means a transition or form input violates the allowed values
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store_error"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Error is a classified dashboard error
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a NotFound error
func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

// StoreFailure wraps a failed store call
func StoreFailure(op string, err error) error {
	return &Error{Kind: KindStore, Op: op, Err: err}
}

// Invalid builds a ValidationError
func Invalid(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsStore(err error) bool      { return KindOf(err) == KindStore }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
