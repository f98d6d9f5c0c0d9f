// Package cascade holds the per-run multimap of relation-of-relation
// membership built during pass one, used to resolve the transitive
// relation cascade: a relation belongs to a region if any of its
// members do, and that membership must propagate to every ancestor
// relation that, transitively, contains it.
//
// It is owned by the driver and passed explicitly into pass one,
// rather than being global mutable state.
package cascade

import "sync"

// Index maps a relation id to the ids of every relation that has it
// as a member ("parents of r"), accumulated across the whole of pass
// one in the order relation versions are scanned.
type Index struct {
	mu      sync.Mutex
	parents map[int64][]int64
}

// New creates an empty cascade index.
func New() *Index {
	return &Index{parents: make(map[int64][]int64)}
}

// Add records that parent has child as a member. Safe for
// concurrent callers; this is the single shared-mutable structure
// touched during pass one, updated once per relation member
// regardless of how many regions are being evaluated.
func (idx *Index) Add(child, parent int64) {
	idx.mu.Lock()
	idx.parents[child] = append(idx.parents[child], parent)
	idx.mu.Unlock()
}

// ParentsOf returns the relation ids that have r as a member,
// accumulated so far. The returned slice must not be mutated by the
// caller.
func (idx *Index) ParentsOf(r int64) []int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.parents[r]
}
