// Package memory keeps the replacement state in process memory. It backs
// tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"replacechain/pkg/domain"
)

var _ domain.StateStore = (*Store)(nil)

// Store holds deep copies of the last saved record.
type Store struct {
	mu    sync.Mutex
	state *domain.State
	saves int
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// NewStoreWith returns a store that already holds state.
func NewStoreWith(state domain.State) *Store {
	s := state.Clone()
	return &Store{state: &s}
}

func (s *Store) Load(context.Context) (domain.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return domain.State{}, false, nil
	}
	return s.state.Clone(), true, nil
}

func (s *Store) Save(_ context.Context, state domain.State) error {
	c := state.Clone()
	s.mu.Lock()
	s.state = &c
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves reports how many times Save was called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Store) Driver() domain.StorageDriver { return domain.StorageMemory }

func (s *Store) Close() error { return nil }
