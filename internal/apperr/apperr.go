// Package apperr defines the error kinds shared by the inbox services and
// the mapping from store failures onto them.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an error for callers that decide policy (HTTP status, retry).
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindConflict
	KindProvider
	KindTransientStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindProvider:
		return "provider"
	case KindTransientStore:
		return "transient_store"
	default:
		return "internal"
	}
}

// Error carries a Kind plus the operation that failed.
type Error struct {
	Kind      Kind
	Op        string
	Msg       string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed input rejected before any side effect.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Auth reports a failed authenticity check (bad webhook signature, bad token).
func Auth(op, msg string) error {
	return &Error{Kind: KindAuth, Op: op, Msg: msg}
}

// NotFound reports an unknown contact, message or schedule.
func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: what + " not found"}
}

// Conflict reports a mutation rejected by the current state of the entity.
func Conflict(op, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg}
}

// Provider wraps a channel provider failure.
func Provider(op string, retryable bool, err error) error {
	return &Error{Kind: KindProvider, Op: op, Err: err, Retryable: retryable}
}

// Store classifies a database error. pgx.ErrNoRows becomes NotFound(what);
// timeouts and connection failures become TransientStore; anything else is
// wrapped as Internal.
func Store(op, what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(op, what)
	}
	if isTransient(err) {
		return &Error{Kind: KindTransientStore, Op: op, Err: err, Retryable: true}
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception, 40001: serialization failure, 57P01: admin shutdown
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code == "40001" || pgErr.Code == "57P01")
	}
	return false
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is of kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// IsRetryable reports whether the operation that produced err may be retried as a whole.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
