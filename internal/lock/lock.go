// Package lock implements the distributed execution lease that keeps a
// workflow execution exclusive to one engine instance. Locks are leases,
// not guarantees: after a crash the key expires and another instance may
// run the same work, which upstream idempotency and the result cache
// absorb.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/retry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/store"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// maxAcquireBackoff caps the growth of the wait between attempts.
const maxAcquireBackoff = 2 * time.Second

// RetryPolicy bounds lock acquisition: Attempts tries separated by
// Interval waits.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultRetryPolicy matches the configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Interval: 100 * time.Millisecond}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Interval <= 0 {
		p.Interval = 100 * time.Millisecond
	}
	return p
}

// Manager acquires execution leases on a KeyedStore.
type Manager struct {
	store store.KeyedStore
}

// NewManager creates a lock manager on the given store.
func NewManager(s store.KeyedStore) *Manager {
	return &Manager{store: s}
}

// Acquire obtains the lease for key, retrying per policy. The returned
// lease renews itself in the background until released or lost. When
// the retry budget is exhausted the error is a LockAcquisitionError.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration, policy RetryPolicy) (*Lease, error) {
	policy = policy.normalized()
	token := uuid.NewString()

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		ok, err := m.store.SetIfAbsent(ctx, key, token, ttl)
		if err != nil {
			lastErr = err
		} else if ok {
			lease := &Lease{
				key:    key,
				token:  token,
				ttl:    ttl,
				store:  m.store,
				stopCh: make(chan struct{}),
				lostCh: make(chan struct{}),
			}
			go lease.renewLoop()
			logger.Debug("lock acquired",
				zap.String("key", key),
				zap.Int("attempt", attempt),
				zap.Duration("ttl", ttl))
			return lease, nil
		}

		if attempt == policy.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, types.NewLockAcquisitionError(key, attempt).WithCause(ctx.Err())
		case <-time.After(retry.Backoff(attempt, policy.Interval, maxAcquireBackoff)):
		}
	}

	err := types.NewLockAcquisitionError(key, policy.Attempts)
	if lastErr != nil {
		err = err.WithCause(lastErr)
	}
	return nil, err
}

// Lease is a held execution lock. It stays valid while the background
// renewal keeps extending the TTL; when renewal is refused the lease is
// flagged lost and Lost() is closed.
type Lease struct {
	key   string
	token string
	ttl   time.Duration
	store store.KeyedStore

	stopCh   chan struct{}
	lostCh   chan struct{}
	stopOnce sync.Once
	lostOnce sync.Once
}

// Key returns the lock key.
func (l *Lease) Key() string { return l.key }

// Token returns the holder token.
func (l *Lease) Token() string { return l.token }

// Lost is closed when the lease could not be renewed.
func (l *Lease) Lost() <-chan struct{} { return l.lostCh }

// IsLost reports whether the lease has been lost.
func (l *Lease) IsLost() bool {
	select {
	case <-l.lostCh:
		return true
	default:
		return false
	}
}

// Release stops renewal and removes the key if this lease still holds
// it. Releasing an already expired or lost lease is not an error.
func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopCh) })

	ok, err := l.store.CompareAndDelete(ctx, l.key, l.token)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("lock already gone on release", zap.String("key", l.key))
	}
	return nil
}

// renewLoop extends the TTL at roughly two thirds of its span. Any
// refusal means another holder owns the key or it expired, so the loop
// flags the lease lost and exits.
func (l *Lease) renewLoop() {
	interval := l.ttl * 2 / 3
	if interval <= 0 {
		interval = l.ttl
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := l.store.CompareAndExtend(ctx, l.key, l.token, l.ttl)
			cancel()
			if err != nil || !ok {
				l.markLost(err)
				return
			}
		}
	}
}

func (l *Lease) markLost(cause error) {
	l.lostOnce.Do(func() {
		logger.Warn("execution lease lost",
			zap.String("key", l.key),
			zap.Error(cause))
		close(l.lostCh)
	})
}
