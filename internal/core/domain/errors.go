package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure once, at the adapter boundary. The core
// never retries; callers decide what to do with each kind.
type ErrorKind string

const (
	ErrProviderAuth        ErrorKind = "provider_auth"
	ErrProviderRateLimit   ErrorKind = "provider_rate_limit"
	ErrProviderNotFound    ErrorKind = "provider_not_found"
	ErrProviderUnavailable ErrorKind = "provider_unavailable"
	ErrValidation          ErrorKind = "validation"
	ErrUnsupported         ErrorKind = "unsupported"
	ErrTimeout             ErrorKind = "timeout"
	ErrUnknown             ErrorKind = "unknown"
)

// Error is the single error shape that crosses the adapter boundary.
type Error struct {
	Kind           ErrorKind
	Message        string
	Provider       Provider
	UpstreamStatus int
	UpstreamCode   string
	RequestID      string
	Cause          error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error with no upstream context.
func NewError(kind ErrorKind, provider Provider, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message}
}

// ValidationError is a synchronous, local request-shape failure. It never
// touches the registry.
func ValidationError(message string) *Error {
	return &Error{Kind: ErrValidation, Message: message}
}

// UnsupportedError signals a static capability gap, raised before any
// network call is made.
func UnsupportedError(provider Provider, capability string) *Error {
	return &Error{
		Kind:     ErrUnsupported,
		Provider: provider,
		Message:  fmt.Sprintf("provider does not support %s", capability),
	}
}

// ClassifyStatus maps an upstream HTTP status to an error kind. Every
// adapter funnels failures through this one mapping.
func ClassifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrProviderAuth
	case http.StatusNotFound:
		return ErrProviderNotFound
	case http.StatusTooManyRequests:
		return ErrProviderRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrTimeout
	}
	if status >= 500 {
		return ErrProviderUnavailable
	}
	return ErrUnknown
}

// KindOf extracts the kind from any error in a chain; unwrapped foreign
// errors report ErrUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrUnknown
}

// HTTPStatus maps an error kind to the status the transport layer returns.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrProviderAuth:
		return http.StatusUnauthorized
	case ErrProviderNotFound:
		return http.StatusNotFound
	case ErrProviderRateLimit:
		return http.StatusTooManyRequests
	case ErrUnsupported:
		return http.StatusNotImplemented
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrProviderUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ChunkError converts the error into its in-stream terminal form.
func (e *Error) ChunkError() *ChunkError {
	return &ChunkError{
		Kind:      e.Kind,
		Message:   e.Message,
		Provider:  e.Provider,
		RequestID: e.RequestID,
	}
}
