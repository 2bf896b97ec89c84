package domain

import "time"

// StateVersion is the snapshot layout written by this build.
const StateVersion = 1

// Node is the persisted form of one union-find slot. A nil Date is the
// sentinel minimum: the set has never been dated by a replacement.
type Node struct {
	Parent int        `json:"parent"`
	Date   *time.Time `json:"date,omitempty"`
}

// State is the serialisable record of a replacement manager: the product
// names in id order, the name to id index and the union-find arena.
type State struct {
	Version   int            `json:"version"`
	Products  []string       `json:"products"`
	IndexOf   map[string]int `json:"index_of,omitempty"`
	UnionFind []Node         `json:"union_find"`
}

// EmptyState returns a valid record with no products.
func EmptyState() State {
	return State{
		Version:   StateVersion,
		Products:  []string{},
		IndexOf:   map[string]int{},
		UnionFind: []Node{},
	}
}

// Clone returns a deep copy. Nil slices stay nil so that a missing field is
// still detectable by Validate after a round trip through a memory store.
func (s State) Clone() State {
	out := State{Version: s.Version}
	if s.Products != nil {
		out.Products = make([]string, len(s.Products))
		copy(out.Products, s.Products)
	}
	if s.IndexOf != nil {
		out.IndexOf = make(map[string]int, len(s.IndexOf))
		for k, v := range s.IndexOf {
			out.IndexOf[k] = v
		}
	}
	if s.UnionFind != nil {
		out.UnionFind = make([]Node, len(s.UnionFind))
		for i, n := range s.UnionFind {
			out.UnionFind[i] = Node{Parent: n.Parent}
			if n.Date != nil {
				d := *n.Date
				out.UnionFind[i].Date = &d
			}
		}
	}
	return out
}

// Validate checks the record and returns a normalised copy. IndexOf is
// rebuilt from Products when absent; when present it must agree exactly.
// Parent links must stay in range and terminate at a root.
func (s State) Validate() (State, error) {
	if s.Version < 0 || s.Version > StateVersion {
		return State{}, malformed("unsupported version %d", s.Version)
	}
	if s.Products == nil {
		return State{}, malformed("missing products")
	}
	if s.UnionFind == nil {
		return State{}, malformed("missing union_find")
	}
	if len(s.Products) != len(s.UnionFind) {
		return State{}, malformed("products has %d entries but union_find has %d", len(s.Products), len(s.UnionFind))
	}
	index := make(map[string]int, len(s.Products))
	for i, name := range s.Products {
		if prev, dup := index[name]; dup {
			return State{}, malformed("product %q listed at ids %d and %d", name, prev, i)
		}
		index[name] = i
	}
	if s.IndexOf != nil {
		if len(s.IndexOf) != len(index) {
			return State{}, malformed("index_of has %d entries but products has %d", len(s.IndexOf), len(index))
		}
		for name, id := range s.IndexOf {
			if want, ok := index[name]; !ok || want != id {
				return State{}, malformed("index_of[%q] = %d disagrees with products", name, id)
			}
		}
	}
	n := len(s.UnionFind)
	for i, node := range s.UnionFind {
		if node.Parent < 0 || node.Parent >= n {
			return State{}, malformed("node %d points at parent %d outside [0,%d)", i, node.Parent, n)
		}
	}
	if id, ok := findCycle(s.UnionFind); ok {
		return State{}, malformed("parent links from node %d never reach a root", id)
	}
	out := s.Clone()
	out.Version = StateVersion
	out.IndexOf = index
	return out, nil
}

// findCycle walks every parent chain once. Nodes are marked in progress while
// on the current walk and done once their chain is known to end at a root.
func findCycle(nodes []Node) (int, bool) {
	const (
		unseen uint8 = iota
		walking
		done
	)
	mark := make([]uint8, len(nodes))
	path := make([]int, 0, 8)
	for start := range nodes {
		if mark[start] == done {
			continue
		}
		path = path[:0]
		id := start
		for mark[id] == unseen {
			mark[id] = walking
			path = append(path, id)
			parent := nodes[id].Parent
			if parent == id {
				break
			}
			id = parent
		}
		if mark[id] == walking && nodes[id].Parent != id {
			return start, true
		}
		for _, p := range path {
			mark[p] = done
		}
	}
	return 0, false
}
