package retry

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/iscle/haven-go/internal/errors"
)

// StatusError reports a non-2xx HTTP response. Fetchers return it so the
// retrier can classify the failure by status code.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string // leading part of the response body, for diagnostics
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}

// ErrorCategory maps the status onto the shared error categories.
func (e *StatusError) ErrorCategory() errors.ErrorCategory {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return errors.CategoryConfiguration
	case e.StatusCode == http.StatusTooManyRequests:
		return errors.CategoryLimit
	case e.StatusCode == http.StatusNotFound:
		return errors.CategoryNotFound
	case e.StatusCode == http.StatusRequestTimeout:
		return errors.CategoryTimeout
	case e.StatusCode >= 500:
		return errors.CategoryNetwork
	default:
		return errors.CategoryHTTP
	}
}

// NonRetryableError is returned when an attempt failed in a way that retrying
// cannot fix. Callers should not retry either.
type NonRetryableError struct {
	Attempts int
	Err      error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable failure after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *NonRetryableError) Unwrap() error { return e.Err }

// ErrorCategory reports the category of the underlying cause.
func (e *NonRetryableError) ErrorCategory() errors.ErrorCategory {
	return causeCategory(e.Err, errors.CategoryHTTP)
}

// StatusCode returns the HTTP status of the cause, or 0.
func (e *NonRetryableError) StatusCode() int { return statusCode(e.Err) }

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error // last failure
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// ErrorCategory is always the retry category so callers can escalate uniformly.
func (e *ExhaustedError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryRetry
}

// StatusCode returns the HTTP status of the last failure, or 0.
func (e *ExhaustedError) StatusCode() int { return statusCode(e.Err) }

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func causeCategory(err error, fallback errors.ErrorCategory) errors.ErrorCategory {
	var ce errors.CategorizedError
	if errors.As(err, &ce) {
		return ce.ErrorCategory()
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.Category != "" {
		return ee.Category
	}
	return fallback
}

// IsRetryable reports whether err is a transient failure: HTTP 5xx, 429 or
// 408, a timeout, or a dropped or refused connection. Cancellation of the
// caller's context is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 ||
			se.StatusCode == http.StatusTooManyRequests ||
			se.StatusCode == http.StatusRequestTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
