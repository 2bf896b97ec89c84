// Package lineage holds the in-memory structures behind the replacement
// manager: a registry assigning dense ids to product names and a dated
// union-find forest over those ids.
package lineage

import "fmt"

// Registry maps product names to dense, zero-based ids in first-seen order.
// Ids are never reused and names are never removed, except by Truncate when a
// caller rolls back an unpersisted mutation.
type Registry struct {
	products []string
	indexOf  map[string]int
}

// NewRegistry returns a registry seeded with names. Duplicates keep their
// first id.
func NewRegistry(names ...string) *Registry {
	r := &Registry{indexOf: make(map[string]int, len(names))}
	for _, name := range names {
		r.GetOrCreate(name)
	}
	return r
}

// GetOrCreate returns the id for name, appending it when unknown. The
// boolean reports whether a new id was assigned.
func (r *Registry) GetOrCreate(name string) (int, bool) {
	if id, ok := r.indexOf[name]; ok {
		return id, false
	}
	id := len(r.products)
	r.products = append(r.products, name)
	r.indexOf[name] = id
	return id, true
}

// ID looks name up without mutating the registry.
func (r *Registry) ID(name string) (int, bool) {
	id, ok := r.indexOf[name]
	return id, ok
}

// Name returns the product registered under id. Ids always originate from
// this registry so an out-of-range id is a programming error.
func (r *Registry) Name(id int) string {
	if id < 0 || id >= len(r.products) {
		panic(fmt.Sprintf("lineage: id %d outside registry of %d products", id, len(r.products)))
	}
	return r.products[id]
}

func (r *Registry) Len() int { return len(r.products) }

// Names returns a copy of every registered name in id order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.products))
	copy(out, r.products)
	return out
}

// Truncate forgets every id >= n.
func (r *Registry) Truncate(n int) {
	if n < 0 || n >= len(r.products) {
		return
	}
	for _, name := range r.products[n:] {
		delete(r.indexOf, name)
	}
	clear(r.products[n:])
	r.products = r.products[:n]
}
