package channel

import (
	"errors"
	"fmt"
	"time"

	"github.com/unifiedinbox/inbox/internal/apperr"
)

// SendErrorKind classifies a failed send so callers can pick a retry policy.
type SendErrorKind int

const (
	// ProviderUnavailable is retryable up to a bounded attempt count.
	ProviderUnavailable SendErrorKind = iota
	// RateLimited is retryable with backoff.
	RateLimited
	// InvalidAddress is never retried; the message is marked FAILED.
	InvalidAddress
)

func (k SendErrorKind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case InvalidAddress:
		return "invalid_address"
	default:
		return "provider_unavailable"
	}
}

// SendError is the typed failure returned by adapters.
type SendError struct {
	Kind       SendErrorKind
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (code %s): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether the same send may be attempted again.
func (e *SendError) Retryable() bool { return e.Kind != InvalidAddress }

// AsSendError extracts a *SendError from err. Unclassified errors are
// treated as ProviderUnavailable.
func AsSendError(err error) *SendError {
	if err == nil {
		return nil
	}
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	return &SendError{Kind: ProviderUnavailable, Err: err}
}

// ToAppError maps a send failure onto the shared error taxonomy.
func ToAppError(op string, err error) error {
	if err == nil {
		return nil
	}
	se := AsSendError(err)
	return apperr.Provider(op, se.Retryable(), se)
}
