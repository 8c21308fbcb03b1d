// Package apperr defines the typed failures returned across the attribution
// pipeline. Every boundary (CLI, HTTP server) renders these instead of
// propagating raw transport or crypto errors.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	MissingCredentials Kind = "missing_credentials"
	InvalidKeyFormat   Kind = "invalid_key_format"
	SigningError       Kind = "signing_error"
	NetworkError       Kind = "network_error"
	TokenError         Kind = "token_error"
	APIError           Kind = "api_error"
	AIUnconfigured     Kind = "ai_unconfigured"
	AIRequestError     Kind = "ai_request_error"
	AIProviderError    Kind = "ai_provider_error"
	AIParseError       Kind = "ai_parse_error"
	DecryptError       Kind = "decrypt_error"

	// Settings boundary
	InvalidInput  Kind = "invalid_input"
	NotConfigured Kind = "not_configured"
)

// Error is a classified failure with a human readable message and an
// optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so callers can write
// errors.Is(err, apperr.New(apperr.TokenError, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// is nil or unclassified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
