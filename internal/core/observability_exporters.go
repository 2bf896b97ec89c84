package core

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"replacechain/pkg/domain"
)

var expvarSeq uint64

// OperationStats aggregates the calls of one manager operation.
type OperationStats struct {
	Calls    int64   `json:"calls"`
	Failures int64   `json:"failures"`
	TotalMS  float64 `json:"total_ms"`
	MaxMS    float64 `json:"max_ms"`
}

// ExpvarMetricsSnapshot is the document published under /debug/vars.
// Products is the size of the last persisted or loaded snapshot.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats  `json:"operations"`
	Events     map[domain.EventKind]int64 `json:"events"`
	Products   int                        `json:"products"`
	RecordedAt time.Time                  `json:"recorded_at"`
}

// ExpvarMetricsRecorder is both a MetricsRecorder and a domain.Observer. It
// keeps per-operation call statistics, event counts and the product count,
// and publishes them as one expvar variable.
type ExpvarMetricsRecorder struct {
	name string

	mu       sync.Mutex
	ops      map[string]*OperationStats
	events   map[domain.EventKind]int64
	products int
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when name is empty. expvar names are process global.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("replacechain_manager_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:   name,
		ops:    make(map[string]*OperationStats),
		events: make(map[domain.EventKind]int64),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar variable name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the current aggregates.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := ExpvarMetricsSnapshot{
		Operations: make(map[string]OperationStats, len(r.ops)),
		Events:     make(map[domain.EventKind]int64, len(r.events)),
		Products:   r.products,
		RecordedAt: time.Now().UTC(),
	}
	for op, stats := range r.ops {
		snap.Operations[op] = *stats
	}
	for kind, n := range r.events {
		snap.Events[kind] = n
	}
	return snap
}

// Observe implements MetricsRecorder. Unnamed operations are ignored.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := millis(duration)
	r.mu.Lock()
	defer r.mu.Unlock()
	stats, ok := r.ops[operation]
	if !ok {
		stats = &OperationStats{}
		r.ops[operation] = stats
	}
	stats.Calls++
	if !success {
		stats.Failures++
	}
	stats.TotalMS += ms
	if ms > stats.MaxMS {
		stats.MaxMS = ms
	}
}

// Notify implements domain.Observer.
func (r *ExpvarMetricsRecorder) Notify(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ev.Kind]++
	switch ev.Kind {
	case domain.EventStatePersisted, domain.EventStateLoaded:
		r.products = ev.Products
	}
}

// JSONTraceEntry is one finished manager operation.
type JSONTraceEntry struct {
	Operation  string             `json:"operation"`
	OK         bool               `json:"ok"`
	Error      string             `json:"error,omitempty"`
	ErrorKind  string             `json:"error_kind,omitempty"`
	Products   int                `json:"products"`
	Events     []domain.EventKind `json:"events,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	DurationMS float64            `json:"duration_ms"`
}

// JSONTraceTracer writes one JSON line per manager operation and keeps the
// entries for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer writing to w. A nil w keeps entries in
// memory only.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the recorded entries.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, entry: JSONTraceEntry{Operation: operation, StartedAt: time.Now().UTC()}}
}

type jsonTraceSpan struct {
	tracer *JSONTraceTracer
	entry  JSONTraceEntry
}

func (s *jsonTraceSpan) End(o SpanOutcome) {
	e := s.entry
	e.DurationMS = millis(time.Since(e.StartedAt))
	e.OK = o.Err == nil
	e.Products = o.Products
	e.Events = append([]domain.EventKind(nil), o.Events...)
	if o.Err != nil {
		e.Error = o.Err.Error()
		e.ErrorKind = errorKind(o.Err)
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, e)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(e)
	}
}

// errorKind buckets manager errors for trace consumers.
func errorKind(err error) string {
	var persist *domain.PersistError
	var malformed *domain.MalformedStateError
	switch {
	case errors.As(err, &malformed):
		return "malformed_state"
	case errors.As(err, &persist):
		return "persist"
	case errors.Is(err, domain.ErrEmptyProductName):
		return "empty_name"
	case errors.Is(err, domain.ErrStateNotFound):
		return "state_not_found"
	}
	return "other"
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
