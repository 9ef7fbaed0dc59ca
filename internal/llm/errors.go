package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	ProviderUnavailable ErrorKind = "provider_unavailable"
	RateLimited         ErrorKind = "rate_limited"
	Timeout             ErrorKind = "timeout"
)

// ProviderError is returned when the model call itself fails.
// It is distinct from a reply that does not parse.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify wraps err in a ProviderError. statusCode is 0 when unknown.
func Classify(provider string, statusCode int, err error) *ProviderError {
	var existing *ProviderError
	if errors.As(err, &existing) {
		return existing
	}

	kind := ProviderUnavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = Timeout
	case statusCode == http.StatusTooManyRequests:
		kind = RateLimited
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		kind = Timeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = Timeout
		}
	}

	return &ProviderError{
		Kind:       kind,
		Provider:   provider,
		StatusCode: statusCode,
		Err:        err,
	}
}

// KindOf returns the ErrorKind of err, or "" when err is not a ProviderError.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
