package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/breaker"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

type fakeNetErr struct {
	timeout bool
}

func (e fakeNetErr) Error() string   { return "fake net error" }
func (e fakeNetErr) Timeout() bool   { return e.timeout }
func (e fakeNetErr) Temporary() bool { return false }

type fakeStatusErr struct {
	code int
}

func (e *fakeStatusErr) Error() string   { return fmt.Sprintf("unexpected status %d", e.code) }
func (e *fakeStatusErr) StatusCode() int { return e.code }

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("agent call: %w", context.DeadlineExceeded), true},
		{"circuit open", breaker.ErrOpen, true},
		{"wrapped circuit open", fmt.Errorf("dispatch: %w", breaker.ErrOpen), true},
		{"configuration", types.NewConfigurationError("bad step config"), false},
		{"cycle", types.NewCycleError("step-a"), false},
		{"step error retryable", types.NewStepExecutionError("s1", "agent", "invocation failed").MarkRetryable(), true},
		{"step error fatal wins over text", types.NewStepExecutionError("s1", "agent", "connection refused"), false},
		{"net timeout", fakeNetErr{timeout: true}, true},
		{"net non-timeout", fakeNetErr{timeout: false}, false},
		{"status 500", &fakeStatusErr{code: 500}, true},
		{"status 503", &fakeStatusErr{code: 503}, true},
		{"status 404", &fakeStatusErr{code: 404}, false},
		{"status 400", &fakeStatusErr{code: 400}, false},
		{"connection refused text", errors.New("dial tcp 10.0.0.1:443: connection refused"), true},
		{"connection reset text", errors.New("read: connection reset by peer"), true},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"io timeout text", errors.New("read tcp: i/o timeout"), true},
		{"no such host text", errors.New("lookup agents.internal: no such host"), true},
		{"service unavailable text", errors.New("upstream: Service Unavailable"), true},
		{"bad gateway text", errors.New("proxy: bad gateway"), true},
		{"gateway timeout text", errors.New("proxy: gateway timeout"), true},
		{"eof text", errors.New("unexpected EOF"), true},
		{"plain failure", errors.New("division by zero"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	max := 2 * time.Second

	assert.Equal(t, base, Backoff(1, base, max))
	assert.Equal(t, 200*time.Millisecond, Backoff(2, base, max))
	assert.Equal(t, 400*time.Millisecond, Backoff(3, base, max))
	assert.Equal(t, max, Backoff(6, base, max))
	assert.Equal(t, max, Backoff(50, base, max))
	assert.Equal(t, base, Backoff(0, base, max))
	assert.Equal(t, time.Duration(0), Backoff(3, 0, max))

	// No cap still terminates on large attempt counts.
	assert.Positive(t, Backoff(200, base, 0))
}
