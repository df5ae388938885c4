package types

import (
	"errors"
	"fmt"
	"strings"
)

// CustomError is the HTTP-facing error raised by middleware and handlers
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Kind categorizes domain errors returned by the policy and cascade engines.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindForbidden        Kind = "FORBIDDEN"
	KindBlocked          Kind = "BLOCKED"
	KindIdentityMismatch Kind = "IDENTITY_MISMATCH"
	KindAlreadyLiked     Kind = "ALREADY_LIKED"
	KindInvalidState     Kind = "INVALID_STATE"
	KindConflict         Kind = "CONFLICT"
	KindUpstream         Kind = "UPSTREAM"
	KindPartialFailure   Kind = "PARTIAL_FAILURE"
)

// Error is a typed domain error.
//
// IDs carries the entity ids involved: the failed ids of a bulk operation,
// or the orphaned records a failed compensation left behind.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	IDs     []string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" [")
		b.WriteString(e.Op)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.IDs) > 0 {
		b.WriteString(" (ids=")
		b.WriteString(strings.Join(e.IDs, ","))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUpstream for errors that carry none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// Is reports whether err is a typed domain error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// FailedIDs returns the ids carried by a PartialFailure error.
func FailedIDs(err error) []string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindPartialFailure {
		return e.IDs
	}
	return nil
}

func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(op, format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Op: op, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a store or collaborator failure.
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Message: "store or collaborator failure", Err: err}
}

// Conflict reports invariant drift or a failed compensation. ids names the
// records that need manual reconciliation.
func Conflict(op string, err error, ids ...string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: "consistency drift requires reconciliation", IDs: ids, Err: err}
}

// PartialFailure reports a bulk operation where some ids failed.
func PartialFailure(op string, failed []string, err error) *Error {
	return &Error{Kind: KindPartialFailure, Op: op, Message: fmt.Sprintf("%d id(s) failed", len(failed)), IDs: failed, Err: err}
}

func Blocked(op, format string, args ...any) *Error {
	return &Error{Kind: KindBlocked, Op: op, Message: fmt.Sprintf(format, args...)}
}

func IdentityMismatch(op, format string, args ...any) *Error {
	return &Error{Kind: KindIdentityMismatch, Op: op, Message: fmt.Sprintf(format, args...)}
}

func AlreadyLiked(op, format string, args ...any) *Error {
	return &Error{Kind: KindAlreadyLiked, Op: op, Message: fmt.Sprintf(format, args...)}
}
