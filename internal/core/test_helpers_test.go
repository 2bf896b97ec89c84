package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"replacechain/internal/infra/persistence/memory"
	"replacechain/pkg/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func sameDate(got *time.Time, want string) bool {
	if want == "" {
		return got == nil
	}
	return got != nil && got.Equal(day(want))
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	m, err := NewManager(context.Background(), store, opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, store
}

func mustAdd(t *testing.T, m *Manager, oldName, newName, date string) domain.ReplaceOutcome {
	t.Helper()
	out, err := m.AddReplacement(context.Background(), oldName, newName, day(date))
	if err != nil {
		t.Fatalf("add %s -> %s: %v", oldName, newName, err)
	}
	return out
}

func expectLatest(t *testing.T, m *Manager, name, latest, date string) {
	t.Helper()
	res := m.Resolve(context.Background(), name)
	if res.Latest != latest || !sameDate(res.Date, date) {
		t.Fatalf("resolve %s: got (%s, %v) want (%s, %q)", name, res.Latest, res.Date, latest, date)
	}
}

// flakyStore wraps a memory store and fails selected calls.
type flakyStore struct {
	*memory.Store
	mu        sync.Mutex
	failSave  bool
	failLoad  bool
	saveAfter int // saves allowed before failSave applies; <0 means immediately
	saves     int
}

var errDiskFull = errors.New("disk full")

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.NewStore(), saveAfter: -1}
}

func (f *flakyStore) Save(ctx context.Context, state domain.State) error {
	f.mu.Lock()
	f.saves++
	fail := f.failSave && (f.saveAfter < 0 || f.saves > f.saveAfter)
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.Store.Save(ctx, state)
}

func (f *flakyStore) Load(ctx context.Context) (domain.State, bool, error) {
	f.mu.Lock()
	fail := f.failLoad
	f.mu.Unlock()
	if fail {
		return domain.State{}, false, fmt.Errorf("read: %w", errDiskFull)
	}
	return f.Store.Load(ctx)
}

func (f *flakyStore) setFailSave(v bool) {
	f.mu.Lock()
	f.failSave = v
	f.mu.Unlock()
}

type captureObserver struct {
	events []domain.Event
}

func (c *captureObserver) Notify(_ context.Context, ev domain.Event) {
	c.events = append(c.events, ev)
}

func (c *captureObserver) kinds() []domain.EventKind {
	out := make([]domain.EventKind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

func (c *captureObserver) reset() { c.events = nil }

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op       string
	err      error
	products int
	events   []domain.EventKind
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(o SpanOutcome) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: o.Err, products: o.Products, events: o.Events})
}

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	lines []logLine
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) add(level, msg string, args []any) {
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) count(level string) int {
	n := 0
	for _, line := range l.lines {
		if line.level == level {
			n++
		}
	}
	return n
}
