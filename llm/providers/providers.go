// Package providers hosts the model provider adapters: a shared policy for
// classifying HTTP failures and the registry that maps model names to
// adapter factories.
package providers

import (
	"fmt"
	"net/http"

	"github.com/deepnoodle-ai/wonton/retry"
)

// APIError is a non-2xx response from a provider API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error (status %d): %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth retrying: rate limits,
// server-side failures, gateway timeouts, and Cloudflare's 520 catch-all.
func (e *APIError) Retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		520:
		return true
	}
	return false
}

// NewError classifies a failed provider response for the retry loop.
// Statuses that never succeed on retry come back marked permanent so the
// loop stops immediately.
func NewError(status int, body string) error {
	err := &APIError{Status: status, Body: body}
	if !err.Retryable() {
		return retry.MarkPermanent(err)
	}
	return err
}
