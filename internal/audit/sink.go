package audit

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
)

// Sink receives audit events. Implementations must be safe for
// concurrent use and must not block the driving loop.
type Sink interface {
	// Name identifies the sink in aggregated error messages.
	Name() string

	// Record delivers one event.
	Record(ctx context.Context, event Event) error
}

// ZapSink writes each event as one structured log line. Failed
// outcomes log at warn level, everything else at info.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink creates a sink over the given logger. A nil logger falls
// back to the package logger.
func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = logger.L()
	}
	return &ZapSink{log: log}
}

// Name implements Sink.
func (s *ZapSink) Name() string { return "zap" }

// Record implements Sink.
func (s *ZapSink) Record(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("execution_id", event.ExecutionID),
		zap.String("workflow_id", event.WorkflowID),
		zap.String("outcome", string(event.Outcome)),
		zap.Duration("duration", event.Duration),
	}
	msg := "execution finished"
	if event.StepID != "" {
		msg = "step finished"
		fields = append(fields,
			zap.String("step_id", event.StepID),
			zap.String("kind", string(event.Kind)))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if event.Outcome == OutcomeFailed {
		s.log.Warn(msg, fields...)
		return nil
	}
	s.log.Info(msg, fields...)
	return nil
}

// MultiSink fans every event out to its child sinks. A failing child
// does not stop delivery to the rest.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink delivering to all given sinks in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Name implements Sink.
func (m *MultiSink) Name() string { return "multi" }

// Record implements Sink.
func (m *MultiSink) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("audit sink errors: %v", errs)
	}
	return nil
}

// NopSink discards every event.
type NopSink struct{}

// Name implements Sink.
func (NopSink) Name() string { return "nop" }

// Record implements Sink.
func (NopSink) Record(context.Context, Event) error { return nil }

// MemorySink captures events in order. Used by the local run command
// and in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty capturing sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Name implements Sink.
func (s *MemorySink) Name() string { return "memory" }

// Record implements Sink.
func (s *MemorySink) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
