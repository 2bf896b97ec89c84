package lineage

import (
	"fmt"
	"time"
)

// node is one arena slot. Only a root's date is meaningful; the zero time is
// the sentinel for a set that no replacement has dated yet.
type node struct {
	parent int
	date   time.Time
}

// Forest is a dated union-find. The representative of each set is the most
// recently dated replacement rather than the largest or deepest tree.
type Forest struct {
	nodes []node
	path  []int
}

// NewForest returns a forest of n singleton sets.
func NewForest(n int) *Forest {
	f := &Forest{nodes: make([]node, 0, n)}
	for i := 0; i < n; i++ {
		f.Grow()
	}
	return f
}

// Grow appends a singleton root carrying the sentinel date and returns its id.
func (f *Forest) Grow() int {
	id := len(f.nodes)
	f.nodes = append(f.nodes, node{parent: id})
	return id
}

func (f *Forest) Len() int { return len(f.nodes) }

// Find returns the root of id's set and the root's date. Every node visited
// on the way is repointed straight at the root and takes the root's date.
func (f *Forest) Find(id int) (int, time.Time) {
	f.check(id)
	path := f.path[:0]
	root := id
	for f.nodes[root].parent != root {
		path = append(path, root)
		root = f.nodes[root].parent
	}
	top := f.nodes[root]
	for _, p := range path {
		f.nodes[p] = top
	}
	f.path = path[:0]
	return root, top.date
}

// UnionResult reports the outcome of Union. Root and Date describe the
// representative of the old product's set after the call.
type UnionResult struct {
	Applied bool
	Root    int
	Date    time.Time

	previous []change
}

type change struct {
	id   int
	prev node
}

// Union folds oldID's set into newID's set dated at date. The new side's
// date never regresses: the effective date is the later of date and the new
// root's date. The union is applied when the effective date is not older than
// the old root's date; ties and self-unions favour the new side. Otherwise it
// is refused and nothing changes.
func (f *Forest) Union(oldID, newID int, date time.Time) UnionResult {
	rootOld, dateOld := f.Find(oldID)
	rootNew, dateNew := f.Find(newID)
	effective := dateNew
	if date.After(effective) {
		effective = date
	}
	if effective.Before(dateOld) {
		return UnionResult{Root: rootOld, Date: dateOld}
	}
	res := UnionResult{
		Applied:  true,
		Root:     rootNew,
		Date:     effective,
		previous: []change{{id: rootOld, prev: f.nodes[rootOld]}, {id: rootNew, prev: f.nodes[rootNew]}},
	}
	merged := node{parent: rootNew, date: effective}
	f.nodes[rootOld] = merged
	f.nodes[rootNew] = merged
	return res
}

// Revert undoes an applied Union. It must be called before any later union
// touches the same roots. Path compression done since stays valid because
// compressed nodes only ever point at a root that Revert restores.
func (f *Forest) Revert(r UnionResult) {
	for i := len(r.previous) - 1; i >= 0; i-- {
		c := r.previous[i]
		f.nodes[c.id] = c.prev
	}
}

// Truncate drops every node with id >= n. Callers only truncate nodes that
// were grown after the last durable snapshot and never unioned with older ids.
func (f *Forest) Truncate(n int) {
	if n < 0 || n >= len(f.nodes) {
		return
	}
	f.nodes = f.nodes[:n]
}

func (f *Forest) check(id int) {
	if id < 0 || id >= len(f.nodes) {
		panic(fmt.Sprintf("lineage: id %d outside forest of %d nodes", id, len(f.nodes)))
	}
}
