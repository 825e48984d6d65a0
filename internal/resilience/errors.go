package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
)

// TransientError marks a failure that is safe to retry: a checker page
// that did not render in time, a 429 from the chat API, a reset connection.
type TransientError struct {
	Err        error
	StatusCode int
	// After is how long the server asked us to wait, if it said.
	After time.Duration
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient. statusCode is 0 for non-HTTP failures.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// WithRetryAfter records a server retry-after hint.
func (e *TransientError) WithRetryAfter(d time.Duration) *TransientError {
	e.After = d
	return e
}

// RetryAfter returns the retry-after hint carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var te *TransientError
	if errors.As(err, &te) && te.After > 0 {
		return te.After, true
	}
	return 0, false
}

// Lower-cased substrings of errors that go away on their own. The net::
// entries are Chrome navigation failures reported through CDP.
var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"net::err_connection",
	"net::err_timed_out",
	"net::err_name_not_resolved",
	"net::err_internet_disconnected",
	"navigation failed",
	"websocket: close",
	"target closed",
}

// IsTransient reports whether err is worth retrying. A per-attempt deadline
// counts as transient; DoVal separately stops once the caller's context is
// done.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var (
		te     *TransientError
		netErr net.Error
	)
	switch {
	case errors.As(err, &te),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED):
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 425, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
