package domain

import (
	"context"
	"time"
)

// EventKind names a significant manager event.
type EventKind string

const (
	EventProductCreated  EventKind = "product_created"
	EventUnionApplied    EventKind = "union_applied"
	EventUnionRefused    EventKind = "union_refused"
	EventProductNotFound EventKind = "product_not_found"
	EventStatePersisted  EventKind = "state_persisted"
	EventStateLoaded     EventKind = "state_loaded"
)

// Advisory reports whether the event signals an expected alternate outcome
// rather than normal progress.
func (k EventKind) Advisory() bool {
	return k == EventUnionRefused || k == EventProductNotFound
}

// Event is delivered to observers after the operation that caused it has
// been made durable. Fields not relevant to a kind are left zero.
type Event struct {
	Kind        EventKind
	Product     string
	Replacement *Replacement
	Latest      string
	// Date is the representative date after the event; zero when undated.
	Date     time.Time
	Products int
	Driver   StorageDriver
	At       time.Time
}

// Observer receives manager events. Implementations must not call back into
// the manager.
type Observer interface {
	Notify(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, event Event)

// Notify calls f.
func (f ObserverFunc) Notify(ctx context.Context, event Event) { f(ctx, event) }
