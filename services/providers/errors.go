package providers

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed taxonomy of failures a capability can report
type Kind string

const (
	KindAuthRequired      Kind = "auth_required"
	KindAuthInvalid       Kind = "auth_invalid"
	KindAuthExpired       Kind = "auth_expired"
	KindRateLimited       Kind = "rate_limited"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindInvalidParams     Kind = "invalid_params"
	KindInvalidPrompt     Kind = "invalid_prompt"
	KindInvalidDimensions Kind = "invalid_dimensions"
	KindProviderError     Kind = "provider_error"
	KindTimeout           Kind = "timeout"
	KindInvalidProvider   Kind = "invalid_provider"
)

// Error represents a classified failure from a channel or from input validation
type Error struct {
	// Kind of the failure
	Kind Kind

	// Provider is the display name of the upstream (may be empty for input errors)
	Provider string

	// Message is a human readable description
	Message string

	// Upstream carries the raw upstream text, when any
	Upstream string

	// StatusCode is the upstream HTTP status (0 when no response was received)
	StatusCode int

	// RetryAfter is the upstream retry hint, when it sent one
	RetryAfter time.Duration

	// Field names the offending parameter for invalid_params errors
	Field string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Quota reports whether the error triggers token rotation
func (e *Error) Quota() bool {
	return e.Kind == KindRateLimited || e.Kind == KindQuotaExceeded
}

// Details returns structured detail for wire-level error rendering
func (e *Error) Details() map[string]interface{} {
	details := make(map[string]interface{})
	if e.Provider != "" {
		details["provider"] = e.Provider
	}
	if e.Upstream != "" {
		details["upstream"] = e.Upstream
	}
	if e.Field != "" {
		details["field"] = e.Field
	}
	if e.RetryAfter > 0 {
		details["retry_after_seconds"] = int(e.RetryAfter.Seconds())
	}
	return details
}

// Sentinels usable with errors.Is
var (
	ErrKindAuthRequired    = &Error{Kind: KindAuthRequired}
	ErrKindAuthInvalid     = &Error{Kind: KindAuthInvalid}
	ErrKindAuthExpired     = &Error{Kind: KindAuthExpired}
	ErrKindRateLimited     = &Error{Kind: KindRateLimited}
	ErrKindQuotaExceeded   = &Error{Kind: KindQuotaExceeded}
	ErrKindProviderError   = &Error{Kind: KindProviderError}
	ErrKindTimeout         = &Error{Kind: KindTimeout}
	ErrKindInvalidProvider = &Error{Kind: KindInvalidProvider}
)

func ErrAuthRequired(provider string) *Error {
	return &Error{Kind: KindAuthRequired, Provider: provider, Message: "API token is required"}
}

func ErrAuthInvalid(provider, message string) *Error {
	return &Error{Kind: KindAuthInvalid, Provider: provider, Message: "invalid API token", Upstream: message}
}

func ErrAuthExpired(provider string) *Error {
	return &Error{Kind: KindAuthExpired, Provider: provider, Message: "API token expired"}
}

func ErrRateLimited(provider string) *Error {
	return &Error{Kind: KindRateLimited, Provider: provider, Message: "rate limited"}
}

func ErrQuotaExceeded(provider string) *Error {
	return &Error{Kind: KindQuotaExceeded, Provider: provider, Message: "quota exceeded"}
}

func ErrInvalidParams(field, message string) *Error {
	return &Error{Kind: KindInvalidParams, Message: message, Field: field}
}

func ErrInvalidPrompt(message string) *Error {
	return &Error{Kind: KindInvalidPrompt, Message: message}
}

func ErrInvalidDimensions(message string) *Error {
	return &Error{Kind: KindInvalidDimensions, Message: message}
}

// ErrProvider wraps opaque upstream text
func ErrProvider(provider, message string) *Error {
	return &Error{Kind: KindProviderError, Provider: provider, Message: message, Upstream: message}
}

func ErrTimeout(provider, message string) *Error {
	return &Error{Kind: KindTimeout, Provider: provider, Message: message}
}

func ErrInvalidProvider(channelID string) *Error {
	return &Error{Kind: KindInvalidProvider, Message: fmt.Sprintf("unknown provider: %s", channelID), Field: "model"}
}

// ErrTransport wraps a network failure that produced no HTTP response
func ErrTransport(provider string, cause error) *Error {
	return &Error{Kind: KindProviderError, Provider: provider, Message: "upstream request failed", Cause: cause}
}

// KindOf returns the Kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	return ""
}

// IsQuotaError checks whether err is a rate-limit or quota failure
func IsQuotaError(err error) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Quota()
	}
	return false
}

// IsInputError checks whether err was produced by validation before any I/O
func IsInputError(err error) bool {
	switch KindOf(err) {
	case KindInvalidParams, KindInvalidPrompt, KindInvalidDimensions:
		return true
	}
	return false
}
