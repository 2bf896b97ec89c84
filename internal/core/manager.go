// Package core wires the product registry and the dated union-find behind a
// Manager that persists the combined state after every mutation and reports
// what it did to observers, metrics and tracers.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"replacechain/internal/lineage"
	"replacechain/pkg/domain"
)

// Manager answers "what replaced this product?" and records new replacements.
// All methods are serialised; the store is read once and then overwritten in
// full after each mutation, so two managers sharing one store are
// last-writer-wins.
type Manager struct {
	mu       sync.Mutex
	store    domain.StateStore
	registry *lineage.Registry
	forest   *lineage.Forest
	pending  []domain.Event

	// delivered collects the kinds flushed during the running operation.
	delivered []domain.EventKind

	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
	observers []domain.Observer
	initial   []string
}

// NewManager restores the manager from store. When the store is empty the
// manager starts with the products given by WithInitialProducts, each a
// singleton, and writes a fresh snapshot immediately.
func NewManager(ctx context.Context, store domain.StateStore, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("core: nil state store")
	}
	m := &Manager{
		store:   store,
		logger:  noopLogger{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if len(m.observers) == 0 {
		m.observers = []domain.Observer{NewLogObserver(m.logger)}
	}
	err := m.run(ctx, "open", func(ctx context.Context) error {
		state, ok, err := m.load(ctx)
		if err != nil {
			return err
		}
		if ok {
			return m.install(ctx, state)
		}
		m.registry = lineage.NewRegistry()
		m.forest = lineage.NewForest(0)
		for _, name := range m.initial {
			if blankName(name) {
				continue
			}
			m.ensure(name)
		}
		return m.commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Driver reports the backend the manager persists to.
func (m *Manager) Driver() domain.StorageDriver { return m.store.Driver() }

// AddReplacement records that old was replaced by new on date. Unknown
// names are registered first. A replacement older than the one already
// recorded for old's set is refused: the outcome reports Applied=false and no
// error is returned. State is persisted in both cases; if that fails the
// in-memory state is rolled back and a *domain.PersistError is returned.
func (m *Manager) AddReplacement(ctx context.Context, oldName, newName string, date time.Time) (domain.ReplaceOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out domain.ReplaceOutcome
	err := m.run(ctx, "add_replacement", func(ctx context.Context) error {
		var err error
		out, err = m.addReplacement(ctx, domain.Replacement{Old: oldName, New: newName, Date: date})
		return err
	})
	return out, err
}

// AddProduct registers name as a singleton. It persists only when the name
// was new.
func (m *Manager) AddProduct(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created bool
	err := m.run(ctx, "add_product", func(ctx context.Context) error {
		if blankName(name) {
			return domain.ErrEmptyProductName
		}
		mark := m.registry.Len()
		created = m.ensure(name)
		if !created {
			return nil
		}
		if err := m.commit(ctx); err != nil {
			m.truncate(mark)
			created = false
			return err
		}
		return nil
	})
	return created, err
}

// BulkLoad applies records strictly in order, persisting after each one as
// AddReplacement does. progress is called after every record. The first
// persistence failure stops the load; records before it stay applied.
func (m *Manager) BulkLoad(ctx context.Context, records []domain.Replacement, progress domain.ProgressFunc) (domain.BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res domain.BulkResult
	err := m.run(ctx, "bulk_load", func(ctx context.Context) error {
		for i, r := range records {
			out, err := m.addReplacement(ctx, r)
			if err != nil {
				return fmt.Errorf("record %d (%s -> %s): %w", i, r.Old, r.New, err)
			}
			res.Processed++
			res.Created += len(out.Created)
			if out.Applied {
				res.Applied++
			} else {
				res.Refused++
			}
			if progress != nil {
				progress(i+1, len(records))
			}
		}
		return nil
	})
	return res, err
}

// Resolve returns the latest replacement for name and its date. Unknown
// names pass through unchanged with Found=false. A set never dated by a
// replacement reports a nil Date.
func (m *Manager) Resolve(ctx context.Context, name string) domain.Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res domain.Resolution
	_ = m.run(ctx, "resolve", func(ctx context.Context) error {
		res = m.resolve(name)
		if !res.Found {
			m.queue(domain.Event{Kind: domain.EventProductNotFound, Product: name})
			m.flush(ctx)
		}
		return nil
	})
	return res
}

// LatestVersion is Resolve without the date.
func (m *Manager) LatestVersion(ctx context.Context, name string) string {
	return m.Resolve(ctx, name).Latest
}

// ListProducts returns every known product in registration order.
func (m *Manager) ListProducts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Names()
}

// Mappings resolves every known product in registration order.
func (m *Manager) Mappings(ctx context.Context, progress domain.ProgressFunc) []domain.Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []domain.Mapping
	_ = m.run(ctx, "mappings", func(context.Context) error {
		total := m.registry.Len()
		rows = make([]domain.Mapping, 0, total)
		for id := 0; id < total; id++ {
			root, date := m.forest.Find(id)
			rows = append(rows, domain.Mapping{
				Product: m.registry.Name(id),
				Latest:  m.registry.Name(root),
				Date:    domain.DatePtr(date),
			})
			if progress != nil {
				progress(id+1, total)
			}
		}
		return nil
	})
	return rows
}

// LoadState replaces the in-memory state with the stored record. Nothing is
// merged. The current state is kept when the store is empty
// (domain.ErrStateNotFound), unreadable or malformed.
func (m *Manager) LoadState(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run(ctx, "load_state", func(ctx context.Context) error {
		state, ok, err := m.load(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStateNotFound
		}
		return m.install(ctx, state)
	})
}

// SaveState writes the full in-memory state to the store.
func (m *Manager) SaveState(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run(ctx, "save_state", m.commit)
}

// ImportState overwrites both the store and the in-memory state with state.
// The record is validated first and memory is only swapped once the store
// accepted it.
func (m *Manager) ImportState(ctx context.Context, state domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run(ctx, "import_state", func(ctx context.Context) error {
		reg, forest, err := lineage.FromState(state)
		if err != nil {
			return err
		}
		snapshot := lineage.ToState(reg, forest)
		if err := m.store.Save(ctx, snapshot); err != nil {
			return &domain.PersistError{Op: "save", Driver: m.store.Driver(), Err: err}
		}
		m.registry, m.forest = reg, forest
		m.queue(domain.Event{Kind: domain.EventStateLoaded, Products: reg.Len(), Driver: m.store.Driver()})
		m.queue(domain.Event{Kind: domain.EventStatePersisted, Products: reg.Len(), Driver: m.store.Driver()})
		m.flush(ctx)
		return nil
	})
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lineage.ToState(m.registry, m.forest)
}

func (m *Manager) addReplacement(ctx context.Context, r domain.Replacement) (domain.ReplaceOutcome, error) {
	if blankName(r.Old) || blankName(r.New) {
		return domain.ReplaceOutcome{}, domain.ErrEmptyProductName
	}
	out := domain.ReplaceOutcome{Replacement: r}
	mark := m.registry.Len()
	oldID := m.ensureID(r.Old, &out.Created)
	newID := m.ensureID(r.New, &out.Created)

	res := m.forest.Union(oldID, newID, r.Date)
	out.Applied = res.Applied
	out.Latest = m.registry.Name(res.Root)
	out.Date = domain.DatePtr(res.Date)

	rep := r
	ev := domain.Event{Kind: domain.EventUnionApplied, Product: r.Old, Replacement: &rep, Latest: out.Latest, Date: res.Date}
	if !res.Applied {
		ev.Kind = domain.EventUnionRefused
	}
	m.queue(ev)

	if err := m.commit(ctx); err != nil {
		m.forest.Revert(res)
		m.truncate(mark)
		return domain.ReplaceOutcome{}, err
	}
	return out, nil
}

func blankName(name string) bool { return strings.TrimSpace(name) == "" }

func (m *Manager) resolve(name string) domain.Resolution {
	id, ok := m.registry.ID(name)
	if !ok {
		return domain.Resolution{Product: name, Latest: name}
	}
	root, date := m.forest.Find(id)
	return domain.Resolution{
		Product: name,
		Latest:  m.registry.Name(root),
		Date:    domain.DatePtr(date),
		Found:   true,
	}
}

func (m *Manager) ensureID(name string, created *[]string) int {
	if m.ensure(name) {
		*created = append(*created, name)
	}
	id, _ := m.registry.ID(name)
	return id
}

// ensure registers name and grows the forest alongside. The two must always
// agree on length.
func (m *Manager) ensure(name string) bool {
	id, created := m.registry.GetOrCreate(name)
	if !created {
		return false
	}
	if grown := m.forest.Grow(); grown != id {
		panic(fmt.Sprintf("core: registry assigned id %d but forest grew node %d", id, grown))
	}
	m.queue(domain.Event{Kind: domain.EventProductCreated, Product: name})
	return true
}

func (m *Manager) truncate(n int) {
	m.registry.Truncate(n)
	m.forest.Truncate(n)
}

func (m *Manager) load(ctx context.Context) (domain.State, bool, error) {
	state, ok, err := m.store.Load(ctx)
	if err != nil {
		var mal *domain.MalformedStateError
		if errors.As(err, &mal) {
			return domain.State{}, false, err
		}
		return domain.State{}, false, &domain.PersistError{Op: "load", Driver: m.store.Driver(), Err: err}
	}
	return state, ok, nil
}

func (m *Manager) install(ctx context.Context, state domain.State) error {
	reg, forest, err := lineage.FromState(state)
	if err != nil {
		return err
	}
	m.registry, m.forest = reg, forest
	m.queue(domain.Event{Kind: domain.EventStateLoaded, Products: reg.Len(), Driver: m.store.Driver()})
	m.flush(ctx)
	return nil
}

// commit snapshots and saves the state. Queued events are delivered only
// after the store accepted the snapshot and are dropped otherwise.
func (m *Manager) commit(ctx context.Context) error {
	state := lineage.ToState(m.registry, m.forest)
	if err := m.store.Save(ctx, state); err != nil {
		m.pending = m.pending[:0]
		return &domain.PersistError{Op: "save", Driver: m.store.Driver(), Err: err}
	}
	m.queue(domain.Event{Kind: domain.EventStatePersisted, Products: len(state.Products), Driver: m.store.Driver()})
	m.flush(ctx)
	return nil
}

func (m *Manager) queue(ev domain.Event) {
	ev.At = m.clock.Now()
	m.pending = append(m.pending, ev)
}

func (m *Manager) flush(ctx context.Context) {
	events := m.pending
	m.pending = nil
	for _, ev := range events {
		m.delivered = append(m.delivered, ev.Kind)
		for _, o := range m.observers {
			o.Notify(ctx, ev)
		}
	}
}

func (m *Manager) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := m.tracer.Start(ctx, op)
	m.delivered = nil
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	m.metrics.Observe(ctx, op, err == nil, elapsed)
	outcome := SpanOutcome{Err: err, Events: m.delivered}
	if m.registry != nil {
		outcome.Products = m.registry.Len()
	}
	m.delivered = nil
	span.End(outcome)
	if err != nil {
		m.logger.Error("replacement operation failed", "operation", op, "error", err)
		return err
	}
	m.logger.Debug("replacement operation completed", "operation", op, "duration", elapsed)
	return nil
}
