// Package breaker guards calls to external agents and webhooks. Each
// downstream key gets its own breaker so one failing agent cannot stall
// the rest of the fleet.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
)

// ErrOpen is returned when the breaker short-circuits a call.
var ErrOpen = errors.New("circuit breaker is open")

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes the rolling failure window and the open/half-open cycle.
type Config struct {
	// Window is the span of the rolling failure-rate window.
	Window time.Duration
	// Buckets divides the window; counts expire one bucket at a time.
	Buckets int
	// FailureThreshold is the failure rate (0..1] that opens the breaker.
	FailureThreshold float64
	// MinRequests is the sample floor below which the rate is not judged.
	MinRequests int64
	// Cooldown is how long the breaker stays open before a trial call.
	Cooldown time.Duration
}

// DefaultConfig matches the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Window:           10 * time.Second,
		Buckets:          10,
		FailureThreshold: 0.5,
		MinRequests:      5,
		Cooldown:         30 * time.Second,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.Buckets <= 0 {
		c.Buckets = d.Buckets
	}
	if c.FailureThreshold <= 0 || c.FailureThreshold > 1 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.MinRequests <= 0 {
		c.MinRequests = d.MinRequests
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	return c
}

type bucket struct {
	successes int64
	failures  int64
}

// Breaker is a single circuit breaker over a rolling count window.
type Breaker struct {
	name string
	cfg  Config

	mu         sync.Mutex
	state      State
	buckets    []bucket
	cur        int
	bucketSpan time.Duration
	lastRotate time.Time
	openedAt   time.Time
	trialBusy  bool

	now func() time.Time
}

// New creates a closed breaker named for its downstream key.
func New(name string, cfg Config) *Breaker {
	cfg = cfg.normalized()
	b := &Breaker{
		name:       name,
		cfg:        cfg,
		buckets:    make([]bucket, cfg.Buckets),
		bucketSpan: cfg.Window / time.Duration(cfg.Buckets),
		now:        time.Now,
	}
	b.lastRotate = b.now()
	return b
}

// rotate expires buckets that have slid out of the window. Callers hold mu.
func (b *Breaker) rotate(now time.Time) {
	steps := int(now.Sub(b.lastRotate) / b.bucketSpan)
	if steps <= 0 {
		return
	}
	if steps >= len(b.buckets) {
		for i := range b.buckets {
			b.buckets[i] = bucket{}
		}
		b.lastRotate = now
		return
	}
	for i := 0; i < steps; i++ {
		b.cur = (b.cur + 1) % len(b.buckets)
		b.buckets[b.cur] = bucket{}
	}
	b.lastRotate = b.lastRotate.Add(time.Duration(steps) * b.bucketSpan)
}

func (b *Breaker) counts() (successes, failures int64) {
	for _, bk := range b.buckets {
		successes += bk.successes
		failures += bk.failures
	}
	return successes, failures
}

// Allow reports whether a call may proceed. In the open state it returns
// ErrOpen until the cooldown elapses, then admits exactly one trial call
// at a time in half-open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rotate(now)

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if now.Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.toHalfOpen()
		b.trialBusy = true
		return nil
	case StateHalfOpen:
		if b.trialBusy {
			return ErrOpen
		}
		b.trialBusy = true
		return nil
	}
	return nil
}

// RecordSuccess counts a successful call. In half-open it closes the
// breaker and resets the window.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rotate(now)

	if b.state == StateHalfOpen {
		b.toClosed()
		return
	}
	b.buckets[b.cur].successes++
}

// RecordFailure counts a failed call. In half-open the trial failure
// reopens the breaker; in closed it opens once the failure rate crosses
// the threshold with enough samples.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rotate(now)

	if b.state == StateHalfOpen {
		b.toOpen(now)
		return
	}
	if b.state == StateOpen {
		return
	}

	b.buckets[b.cur].failures++
	successes, failures := b.counts()
	total := successes + failures
	if total < b.cfg.MinRequests {
		return
	}
	if float64(failures)/float64(total) >= b.cfg.FailureThreshold {
		b.toOpen(now)
	}
}

// State returns the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rotate(now)
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cfg.Cooldown {
		b.toHalfOpen()
	}
	return b.state
}

// Do wraps fn with the breaker: short-circuits when open, records the
// outcome otherwise. A context.Canceled result is the caller's doing and
// counts as neither success nor failure.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err == nil {
		b.RecordSuccess()
		return nil
	}
	if errors.Is(err, context.Canceled) {
		b.release()
		return err
	}
	b.RecordFailure()
	return err
}

// release frees the half-open trial slot without judging the outcome.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialBusy = false
}

// State transitions below are called with mu held.

func (b *Breaker) toOpen(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
	b.trialBusy = false
	logger.Warn("circuit breaker opened", zap.String("breaker", b.name))
}

func (b *Breaker) toHalfOpen() {
	b.state = StateHalfOpen
	b.trialBusy = false
	logger.Info("circuit breaker half-open", zap.String("breaker", b.name))
}

func (b *Breaker) toClosed() {
	b.state = StateClosed
	b.trialBusy = false
	for i := range b.buckets {
		b.buckets[i] = bucket{}
	}
	logger.Info("circuit breaker closed", zap.String("breaker", b.name))
}

// Registry hands out one breaker per downstream key.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry creates a registry applying cfg to every new breaker.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg.normalized(),
		breakers: make(map[string]*Breaker),
	}
}

// ForKey returns the breaker for key, creating it on first use.
func (r *Registry) ForKey(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = New(key, r.cfg)
		r.breakers[key] = b
	}
	return b
}

// States snapshots the state of every known breaker.
func (r *Registry) States() map[string]string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.breakers))
	bs := make([]*Breaker, 0, len(r.breakers))
	for k, b := range r.breakers {
		keys = append(keys, k)
		bs = append(bs, b)
	}
	r.mu.Unlock()

	out := make(map[string]string, len(keys))
	for i, k := range keys {
		out[k] = bs[i].State().String()
	}
	return out
}
