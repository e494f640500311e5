package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a capability failure. Configuration errors are fatal at
// startup and never retried; the other kinds are recoverable at the node level.
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota
	KindAPI
	KindTimeout
	KindRateLimit
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "api"
	}
}

// Error is the typed failure returned by every capability call.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth retrying with backoff.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindRateLimit || (e.Kind == KindAPI && e.Status >= 500)
}

func newError(kind ErrorKind, providerName string, err error) *Error {
	return &Error{Kind: kind, Provider: providerName, Err: err}
}

// classify wraps an arbitrary transport failure into a typed Error.
func classify(providerName string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, providerName, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return newError(KindTimeout, providerName, err)
	}
	return newError(KindAPI, providerName, err)
}

// statusError maps an HTTP status to the error taxonomy.
func statusError(providerName string, status int, msg string) *Error {
	kind := KindAPI
	switch {
	case status == 429:
		kind = KindRateLimit
	case status == 401 || status == 403:
		kind = KindConfiguration
	}
	return &Error{Kind: kind, Provider: providerName, Status: status, Err: errors.New(msg)}
}
