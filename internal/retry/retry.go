// Package retry classifies failures as retryable or fatal. Nothing here
// re-drives a step; callers record the classification and external
// schedulers decide what to do with it.
package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/breaker"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// retryableMarkers are matched against the lowercased error text as a
// fallback when the error carries no structured signal.
var retryableMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"eof",
}

// IsRetryable reports whether err is transient. Deadline expiry, open
// circuits, network timeouts, 5xx webhook statuses and well-known
// transport failure texts are retryable; cancellation, configuration
// problems and everything else are not. A StepExecutionError carries
// its own classification, which is taken as-is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, breaker.ErrOpen) {
		return true
	}
	if types.IsConfigurationError(err) || types.IsCycleError(err) {
		return false
	}

	var stepErr *types.StepExecutionError
	if errors.As(err, &stepErr) {
		return stepErr.Retryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode() >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Backoff returns the wait before the given 1-based attempt: base for
// the first, doubling after, clamped to max when max is positive.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		if max > 0 && d >= max {
			return max
		}
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
