package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// HTTPError carries the status of a non-2xx provider response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("provider returned status %d", e.Status)
}

// IsRetryable reports whether a failed call is worth repeating. Timeouts,
// connection failures, rate limiting and server-side errors are transient;
// other client errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests || httpErr.Status >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
