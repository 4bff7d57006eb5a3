// Package reliability decides which provider failures say something about
// backend health.
package reliability

import (
	"context"
	"errors"
	"net/http"
)

// IsRetryableHTTPStatus classifies statuses where the provider, not the
// request, is at fault.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// IsBackendFault reports whether err should count against a provider. Caller
// cancellation and rejections of a single request (400, 404, 422) do not;
// rejected credentials do, since every later call will fail the same way.
func IsBackendFault(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatus()
		return IsRetryableHTTPStatus(code) ||
			code == http.StatusUnauthorized ||
			code == http.StatusForbidden
	}
	return true
}
