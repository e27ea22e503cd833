package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of a payment operation.
type Kind string

const (
	KindInvalidAmount   Kind = "invalid_amount"
	KindInvalidInterval Kind = "invalid_interval"
	KindLengthMismatch  Kind = "length_mismatch"
	KindInvalidCursor   Kind = "invalid_cursor"
	KindNotFound        Kind = "not_found"
	KindNotOwner        Kind = "not_owner"
	KindTransferFailed  Kind = "transfer_failed"
	KindStorageFailure  Kind = "storage_failure"
)

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrInvalidAmount   = &Error{Kind: KindInvalidAmount}
	ErrInvalidInterval = &Error{Kind: KindInvalidInterval}
	ErrLengthMismatch  = &Error{Kind: KindLengthMismatch}
	ErrInvalidCursor   = &Error{Kind: KindInvalidCursor}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrNotOwner        = &Error{Kind: KindNotOwner}
	ErrTransferFailed  = &Error{Kind: KindTransferFailed}
	ErrStorageFailure  = &Error{Kind: KindStorageFailure}
)

// Error carries the kind, the operation that failed and an optional cause.
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can compare against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, reason string) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Storage wraps a persistence failure. Nil stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind == KindStorageFailure {
		return err
	}
	return Wrap(KindStorageFailure, op, err)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Reason returns the human-readable reason of err, falling back to err.Error().
func Reason(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Reason != "" {
			return appErr.Reason
		}
		if appErr.Err != nil {
			return appErr.Err.Error()
		}
		return string(appErr.Kind)
	}
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}
