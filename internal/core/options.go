package core

import (
	"context"
	"time"

	"replacechain/pkg/domain"
)

// Logger is the structured logging surface the manager writes to. It is
// satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies event timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome and latency of every manager operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens a span per manager operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// SpanOutcome describes a finished manager operation.
type SpanOutcome struct {
	Err      error
	Products int                // registry size once the operation returned
	Events   []domain.EventKind // events delivered to observers, in order
}

// TraceSpan is closed with the outcome of its operation.
type TraceSpan interface {
	End(outcome SpanOutcome)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(SpanOutcome) {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger routes operation logs to logger. When no observer is configured
// the same logger also reports manager events.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp events.
func WithClock(clock Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMetricsRecorder installs a recorder for operation outcomes.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(m *Manager) {
		if recorder != nil {
			m.metrics = recorder
		}
	}
}

// WithTracer installs a tracer for operation spans.
func WithTracer(tracer Tracer) Option {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithObserver adds an event observer. It may be given more than once;
// observers are notified in the order they were added.
func WithObserver(observer domain.Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
	}
}

// WithInitialProducts seeds an empty store with singleton products. It is
// ignored when the store already holds a record.
func WithInitialProducts(names ...string) Option {
	return func(m *Manager) {
		m.initial = append(m.initial, names...)
	}
}
