package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds carried by ProviderError. Match them with errors.Is.
var (
	// ErrRateLimited indicates the backend rejected the call for exceeding a rate limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuota indicates exhausted credits, quota or billing problems.
	ErrQuota = errors.New("quota exceeded")
	// ErrAuth indicates a missing or rejected API key.
	ErrAuth = errors.New("authentication failed")
	// ErrTimeout indicates the per-call timeout elapsed.
	ErrTimeout = errors.New("timed out")
	// ErrUnavailable covers network failures and any other backend error.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrEmptyResponse indicates the backend answered with no text.
	ErrEmptyResponse = errors.New("empty response")

	// ErrFatalAPI matches errors that will not go away by retrying the next
	// message (auth and quota). Batch callers stop on it.
	ErrFatalAPI = errors.New("fatal API error")
)

// ProviderError is the only error type returned by Provider methods.
type ProviderError struct {
	Provider string
	Op       string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, e.Kind, e.Err)
}

// Unwrap exposes the kind, ErrFatalAPI when the kind is fatal, and the cause.
func (e *ProviderError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Kind == ErrAuth || e.Kind == ErrQuota {
		errs = append(errs, ErrFatalAPI)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsFatal reports whether err should stop a batch run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalAPI)
}

// classify maps a backend error onto one of the kinds above.
// SDK errors are only available as text, so matching is on the message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "credit balance", "insufficient_quota", "quota", "billing"):
		return ErrQuota
	case containsAny(msg, "rate limit", "rate_limit", "too many requests", "429"):
		return ErrRateLimited
	case containsAny(msg, "invalid api key", "invalid x-api-key", "authentication", "unauthorized", "permission", "401", "403"):
		return ErrAuth
	case containsAny(msg, "deadline exceeded", "timeout", "timed out"):
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (e *engine) wrapError(op string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Provider: e.name, Op: op, Kind: classify(err), Err: err}
}
