package softcut

import (
	"sync/atomic"

	"github.com/wegman-software/osm-extract-go/internal/cascade"
)

// PassOne is the membership-discovery Sink. It never touches a
// Writer — its only job is to grow each region's four bitsets and the
// shared cascade index so that pass two knows, for every object,
// which regions want it.
type PassOne struct {
	states  []*ExtractState
	cascade *cascade.Index

	nodes, ways, relations atomic.Int64
}

// Counts reports how many nodes, ways, and relations this pass has
// seen so far, safe to call concurrently with Node/Way/Relation (used
// by a heartbeat goroutine running alongside the driving Source.Drive
// call).
func (p *PassOne) Counts() (nodes, ways, relations int64) {
	return p.nodes.Load(), p.ways.Load(), p.relations.Load()
}

// NewPassOne builds a PassOne over the given region states, sharing
// one cascade index across all of them.
func NewPassOne(states []*ExtractState, idx *cascade.Index) *PassOne {
	return &PassOne{states: states, cascade: idx}
}

func (p *PassOne) Init(meta Meta) error { return nil }

// Node marks a node present in every region whose predicate contains
// its coordinate. Coordinates are evaluated once per region per node
// version — no caching of predicate results across versions of the
// same node.
func (p *PassOne) Node(v NodeVersion) error {
	p.nodes.Add(1)
	for _, st := range p.states {
		if st.Pred.Contains(v.Lon, v.Lat) {
			st.NodeTracker.Set(v.ID)
		}
	}
	return nil
}

func (p *PassOne) AfterNodes() error { return nil }

// Way marks a way present in a region if any of its node refs are
// already tracked for that region, and in that case also marks every
// one of its node refs in that region's extra-node tracker so pass
// two can emit geometry-supporting nodes outside the region's own
// bounds.
//
// Each way version is evaluated on its own: only the refs of a version
// that hits are marked. A ref that appears only in other, non-hitting
// versions of the same way is not marked, although pass two emits
// every version of a tracked way, so such a version can reference a
// node missing from the region's output.
func (p *PassOne) Way(v WayVersion) error {
	p.ways.Add(1)
	for _, st := range p.states {
		hit := false
		for _, ref := range v.NodeRefs {
			if st.NodeTracker.Get(ref) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		st.WayTracker.Set(v.ID)
		for _, ref := range v.NodeRefs {
			st.ExtraNodeTracker.Set(ref)
		}
	}
	return nil
}

func (p *PassOne) AfterWays() error { return nil }

// Relation marks a relation present in a region if any of its members
// are already tracked for that region (as a node, way, or relation),
// and cascades that membership up through every ancestor relation
// already recorded in the cascade index. Independently of any region,
// every relation-typed member is recorded into the cascade index
// exactly once, regardless of how many regions this relation version
// hits.
func (p *PassOne) Relation(v RelationVersion) error {
	p.relations.Add(1)
	for _, m := range v.Members {
		if m.Type == MemberRelation {
			p.cascade.Add(m.Ref, v.ID)
		}
	}

	for _, st := range p.states {
		hit := false
		for _, m := range v.Members {
			switch m.Type {
			case MemberNode:
				if st.NodeTracker.Get(m.Ref) {
					hit = true
				}
			case MemberWay:
				if st.WayTracker.Get(m.Ref) {
					hit = true
				}
			case MemberRelation:
				if st.RelationTracker.Get(m.Ref) {
					hit = true
				}
			}
		}
		if !hit {
			continue
		}
		st.RelationTracker.Set(v.ID)
		p.cascadeFrom(st, v.ID)
	}
	return nil
}

// cascadeFrom walks the cascade index upward from r, marking every
// ancestor relation tracked for st, using an explicit work stack
// rather than recursion — arbitrarily deep relation nesting must not
// exhaust the goroutine stack — and skipping any relation already
// tracked for st to stay cycle-safe.
func (p *PassOne) cascadeFrom(st *ExtractState, r int64) {
	stack := []int64{r}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, parent := range p.cascade.ParentsOf(cur) {
			if st.RelationTracker.Get(parent) {
				continue
			}
			st.RelationTracker.Set(parent)
			stack = append(stack, parent)
		}
	}
}

func (p *PassOne) AfterRelations() error { return nil }

func (p *PassOne) Final() error { return nil }
