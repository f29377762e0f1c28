package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a model-call failure. The orchestrator keys retry and
// fallback decisions off the kind, never off error strings.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindUnavailable Kind = "unavailable"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindParse       Kind = "parse"
	KindEmpty       Kind = "empty"
)

// Error is a tagged model-call failure.
type Error struct {
	Kind  Kind
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Model, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Model, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying the same call can plausibly succeed.
// Rate limits are excluded: a 429 surfaces to the caller immediately so the
// request budget is not spent on backoff.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindUnavailable:
		return true
	}
	return false
}

// ErrorKind extracts the kind from an error chain, or "" when the error is
// not a model-call failure.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(model string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Model: model, Err: err}
}

// classifyTransport tags connection-level failures from the HTTP client.
func classifyTransport(model string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(model, KindTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(model, KindTimeout, err)
	}
	return newError(model, KindUnavailable, err)
}

// classifyStatus tags non-200 responses.
func classifyStatus(model string, status int, body string) *Error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(model, KindAuth, err)
	case status == http.StatusTooManyRequests:
		return newError(model, KindRateLimited, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(model, KindTimeout, err)
	case status >= 500:
		return newError(model, KindUnavailable, err)
	default:
		return newError(model, KindUnavailable, err)
	}
}
