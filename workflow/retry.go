package workflow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var transientKeywords = []string{
	"rate limit",
	"rate-limited",
	"too many requests",
	"quota exceeded",
	"request rate exceeded",
	"overloaded",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"service unavailable",
	"bad gateway",
	"internal server error",
	"connection reset",
}

// statusPattern finds an HTTP status named in an error message, as in
// "request failed with status 503" or "status code: 429".
var statusPattern = regexp.MustCompile(`\bstatus(?:\s+code)?\s*[:=]?\s*(\d{3})\b`)

// StatusError carries the HTTP status of a failed model call. Generators
// wrap provider errors in it so classification does not depend on how the
// provider words its message.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// IsTransient reports whether err looks like a rate limit, timeout, or
// upstream availability failure. Transient failures are retried like any
// other; they only wait longer between attempts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil && transientStatus(code) {
			return true
		}
	}
	for _, keyword := range transientKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}

	return false
}

// retry runs op up to attempts times. The wait before attempt n+1 is
// n × Backoff, or n × TransientBackoff when the failure was transient.
// Cancellation of ctx stops the loop immediately.
func retry[T any](
	ctx context.Context,
	p *Policy,
	attempts int,
	op func(context.Context) (T, error),
) (T, error) {
	var zero T
	var lastErr error

	attempts = max(attempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("attempt %d: %w", attempt, errors.Join(ctx.Err(), lastErr))
		}

		if attempt == attempts {
			break
		}

		delay := p.BackoffDuration()
		if IsTransient(err) {
			delay = p.TransientBackoffDuration()
		}

		if err := wait(ctx, delay*time.Duration(attempt)); err != nil {
			return zero, fmt.Errorf("attempt %d: %w", attempt, errors.Join(err, lastErr))
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
