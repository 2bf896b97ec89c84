package lineage

import (
	"fmt"

	"replacechain/pkg/domain"
)

// FromState rebuilds a registry and forest from a persisted record. The
// record is validated first; nothing is truncated or guessed.
func FromState(s domain.State) (*Registry, *Forest, error) {
	valid, err := s.Validate()
	if err != nil {
		return nil, nil, err
	}
	reg := &Registry{products: valid.Products, indexOf: valid.IndexOf}
	f := &Forest{nodes: make([]node, len(valid.UnionFind))}
	for i, n := range valid.UnionFind {
		f.nodes[i] = node{parent: n.Parent}
		if n.Date != nil {
			f.nodes[i].date = *n.Date
		}
	}
	return reg, f, nil
}

// ToState snapshots reg and f into a persistable record.
func ToState(reg *Registry, f *Forest) domain.State {
	if reg.Len() != f.Len() {
		panic(fmt.Sprintf("lineage: registry has %d products but forest has %d nodes", reg.Len(), f.Len()))
	}
	s := domain.State{
		Version:   domain.StateVersion,
		Products:  reg.Names(),
		IndexOf:   make(map[string]int, reg.Len()),
		UnionFind: make([]domain.Node, f.Len()),
	}
	for name, id := range reg.indexOf {
		s.IndexOf[name] = id
	}
	for i, n := range f.nodes {
		s.UnionFind[i] = domain.Node{Parent: n.parent, Date: domain.DatePtr(n.date)}
	}
	return s
}
