// Package storetest holds the behavioural contract every domain.StateStore
// backend is tested against.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"replacechain/pkg/domain"
)

// Sample returns a small valid record: A and B merged under B dated
// 2024-03-01, C on its own and undated.
func Sample() domain.State {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return domain.State{
		Version:  domain.StateVersion,
		Products: []string{"A", "B", "C"},
		IndexOf:  map[string]int{"A": 0, "B": 1, "C": 2},
		UnionFind: []domain.Node{
			{Parent: 1, Date: &d},
			{Parent: 1, Date: &d},
			{Parent: 2},
		},
	}
}

// Run exercises open against the contract. open must return a fresh, empty
// store; it is called once per subtest.
func Run(t *testing.T, open func(t *testing.T) domain.StateStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty load", func(t *testing.T) {
		store := open(t)
		_, ok, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if ok {
			t.Fatalf("fresh store reported a record")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		store := open(t)
		want := Sample()
		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, ok, err := store.Load(ctx)
		if err != nil || !ok {
			t.Fatalf("load: ok=%v err=%v", ok, err)
		}
		AssertEqual(t, want, got)
	})

	t.Run("save overwrites", func(t *testing.T) {
		store := open(t)
		if err := store.Save(ctx, Sample()); err != nil {
			t.Fatalf("first save: %v", err)
		}
		next := domain.EmptyState()
		next.Products = []string{"X"}
		next.IndexOf = map[string]int{"X": 0}
		next.UnionFind = []domain.Node{{Parent: 0}}
		if err := store.Save(ctx, next); err != nil {
			t.Fatalf("second save: %v", err)
		}
		got, ok, err := store.Load(ctx)
		if err != nil || !ok {
			t.Fatalf("load: ok=%v err=%v", ok, err)
		}
		AssertEqual(t, next, got)
	})

	t.Run("empty state", func(t *testing.T) {
		store := open(t)
		if err := store.Save(ctx, domain.EmptyState()); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, ok, err := store.Load(ctx)
		if err != nil || !ok {
			t.Fatalf("load: ok=%v err=%v", ok, err)
		}
		if len(got.Products) != 0 || len(got.UnionFind) != 0 {
			t.Fatalf("expected empty record, got %+v", got)
		}
		if _, err := got.Validate(); err != nil {
			t.Fatalf("empty record should validate: %v", err)
		}
	})

	t.Run("driver", func(t *testing.T) {
		if open(t).Driver() == "" {
			t.Fatalf("driver must be named")
		}
	})
}

// AssertEqual compares records after normalising dates to UTC instants.
func AssertEqual(t testing.TB, want, got domain.State) {
	t.Helper()
	if !reflect.DeepEqual(normalise(want), normalise(got)) {
		t.Fatalf("state mismatch\nwant %+v\ngot  %+v", describe(want), describe(got))
	}
}

type flatNode struct {
	Parent int
	Date   string
}

type flatState struct {
	Version   int
	Products  []string
	IndexOf   map[string]int
	UnionFind []flatNode
}

func normalise(s domain.State) flatState {
	out := flatState{Version: s.Version, Products: s.Products, IndexOf: s.IndexOf}
	if len(out.Products) == 0 {
		out.Products = nil
	}
	if len(out.IndexOf) == 0 {
		out.IndexOf = nil
	}
	for _, n := range s.UnionFind {
		fn := flatNode{Parent: n.Parent}
		if n.Date != nil {
			fn.Date = n.Date.UTC().Format(time.RFC3339Nano)
		}
		out.UnionFind = append(out.UnionFind, fn)
	}
	return out
}

func describe(s domain.State) flatState { return normalise(s) }

// IsMalformed reports whether err carries a MalformedStateError.
func IsMalformed(err error) bool {
	var m *domain.MalformedStateError
	return errors.As(err, &m)
}
