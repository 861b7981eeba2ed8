// Package apperr holds the error taxonomy shared by services and transports.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrRateLimit  = errors.New("rate limit exceeded")
	ErrProvider   = errors.New("provider error")
)

// ValidationError rejects malformed input before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing entity, sender or sequence.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RateLimitExceeded is soft: callers reschedule instead of failing.
type RateLimitExceeded struct {
	Scope string
	Limit int
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s (limit %d)", e.Scope, e.Limit)
}

func (e *RateLimitExceeded) Unwrap() error { return ErrRateLimit }

// ProviderError wraps a failure returned by an external collaborator,
// including timeouts.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProvider, e.Err} }

// Validation builds a *ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound builds a *NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// Provider wraps err as a *ProviderError. A nil err stays nil.
func Provider(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsRateLimit(err error) bool  { return errors.Is(err, ErrRateLimit) }
func IsProvider(err error) bool   { return errors.Is(err, ErrProvider) }
