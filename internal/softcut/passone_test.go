package softcut

import (
	"testing"

	"github.com/wegman-software/osm-extract-go/internal/cascade"
)

func insideOnly(targetLon, targetLat float64) fakePredicate {
	return fakePredicate{contains: func(lon, lat float64) bool {
		return lon == targetLon && lat == targetLat
	}}
}

// Scenario A: a node whose coordinate satisfies a region's predicate
// is tracked for that region, and only that region.
func TestPassOneNodeInsideRegion(t *testing.T) {
	inRegion := NewExtractState("in", insideOnly(1, 1), &fakeWriter{})
	outRegion := NewExtractState("out", insideOnly(99, 99), &fakeWriter{})
	p1 := NewPassOne([]*ExtractState{inRegion, outRegion}, cascade.New())

	if err := p1.Node(NodeVersion{ID: 10, Lon: 1, Lat: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !inRegion.NodeTracker.Get(10) {
		t.Errorf("expected node 10 tracked for in-region")
	}
	if outRegion.NodeTracker.Get(10) {
		t.Errorf("expected node 10 not tracked for out-region")
	}
}

// Scenario B: a way with exactly one node ref inside the region is
// tracked, and every one of its node refs (including those outside
// the region) is recorded in the extra-node tracker.
func TestPassOneWayPullsAllNodeRefsIntoExtraTracker(t *testing.T) {
	st := NewExtractState("r", insideOnly(1, 1), &fakeWriter{})
	p1 := NewPassOne([]*ExtractState{st}, cascade.New())

	if err := p1.Node(NodeVersion{ID: 1, Lon: 1, Lat: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p1.Way(WayVersion{ID: 100, NodeRefs: []int64{1, 2, 3}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !st.WayTracker.Get(100) {
		t.Errorf("expected way 100 tracked")
	}
	for _, id := range []int64{1, 2, 3} {
		if !st.ExtraNodeTracker.Get(id) {
			t.Errorf("expected node %d in extra-node tracker", id)
		}
	}
}

// A way with no node ref inside any region is tracked nowhere.
func TestPassOneWayWithNoHitIsUntracked(t *testing.T) {
	st := NewExtractState("r", insideOnly(1, 1), &fakeWriter{})
	p1 := NewPassOne([]*ExtractState{st}, cascade.New())

	if err := p1.Way(WayVersion{ID: 200, NodeRefs: []int64{50, 51}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.WayTracker.Get(200) {
		t.Errorf("expected way 200 untracked")
	}
}

// Scenario C: a relation with a member way already tracked for the
// region becomes tracked itself.
func TestPassOneRelationTrackedViaMemberWay(t *testing.T) {
	st := NewExtractState("r", insideOnly(1, 1), &fakeWriter{})
	p1 := NewPassOne([]*ExtractState{st}, cascade.New())

	st.WayTracker.Set(100)
	rel := RelationVersion{ID: 900, Members: []Member{{Type: MemberWay, Ref: 100}}}
	if err := p1.Relation(rel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !st.RelationTracker.Get(900) {
		t.Errorf("expected relation 900 tracked")
	}
}

// A relation whose members are all untracked stays untracked.
func TestPassOneRelationNoHit(t *testing.T) {
	st := NewExtractState("r", insideOnly(1, 1), &fakeWriter{})
	p1 := NewPassOne([]*ExtractState{st}, cascade.New())

	rel := RelationVersion{ID: 901, Members: []Member{{Type: MemberWay, Ref: 404}}}
	if err := p1.Relation(rel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.RelationTracker.Get(901) {
		t.Errorf("expected relation 901 untracked")
	}
}

// Cascade: a relation tracked for a region propagates up through an
// ancestor chain recorded in the cascade index, regardless of the
// order ancestors were registered relative to the triggering hit.
func TestPassOneCascadesThroughAncestorChain(t *testing.T) {
	st := NewExtractState("r", insideOnly(1, 1), &fakeWriter{})
	idx := cascade.New()
	p1 := NewPassOne([]*ExtractState{st}, idx)

	// relation 10 is a member of 20, which is a member of 30.
	if err := p1.Relation(RelationVersion{ID: 10, Members: nil}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p1.Relation(RelationVersion{ID: 20, Members: []Member{{Type: MemberRelation, Ref: 10}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p1.Relation(RelationVersion{ID: 30, Members: []Member{{Type: MemberRelation, Ref: 20}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Now relation 10 gets a hit via a way member.
	st.WayTracker.Set(555)
	if err := p1.Relation(RelationVersion{ID: 10, Members: []Member{{Type: MemberWay, Ref: 555}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []int64{10, 20, 30} {
		if !st.RelationTracker.Get(id) {
			t.Errorf("expected relation %d tracked via cascade", id)
		}
	}
}

// Scenario E: a cycle in relation membership must not hang the
// cascade walk. 100 and 200 are mutual parents; 100 gets a direct
// hit.
func TestPassOneCascadeCycleTerminates(t *testing.T) {
	st := NewExtractState("r", insideOnly(1, 1), &fakeWriter{})
	idx := cascade.New()
	idx.Add(100, 200) // 200 has 100 as a member
	idx.Add(200, 100) // 100 has 200 as a member
	p1 := NewPassOne([]*ExtractState{st}, idx)

	p1.cascadeFrom(st, 100)

	if !st.RelationTracker.Get(100) || !st.RelationTracker.Get(200) {
		t.Errorf("expected both relations in the cycle tracked")
	}
}

// Scenario F: disjoint regions track independent node sets for the
// same input stream.
func TestPassOneIndependentRegions(t *testing.T) {
	a := NewExtractState("a", insideOnly(1, 1), &fakeWriter{})
	b := NewExtractState("b", insideOnly(2, 2), &fakeWriter{})
	p1 := NewPassOne([]*ExtractState{a, b}, cascade.New())

	if err := p1.Node(NodeVersion{ID: 1, Lon: 1, Lat: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p1.Node(NodeVersion{ID: 2, Lon: 2, Lat: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.NodeTracker.Get(1) || a.NodeTracker.Get(2) {
		t.Errorf("region a should only track node 1")
	}
	if !b.NodeTracker.Get(2) || b.NodeTracker.Get(1) {
		t.Errorf("region b should only track node 2")
	}
}

func TestPassOneCountsEachKindIndependently(t *testing.T) {
	st := NewExtractState("r", insideOnly(1, 1), &fakeWriter{})
	p1 := NewPassOne([]*ExtractState{st}, cascade.New())

	p1.Node(NodeVersion{ID: 1, Lon: 1, Lat: 1})
	p1.Node(NodeVersion{ID: 2, Lon: 9, Lat: 9})
	p1.Way(WayVersion{ID: 1, NodeRefs: []int64{1}})
	p1.Relation(RelationVersion{ID: 1})

	nodes, ways, relations := p1.Counts()
	if nodes != 2 || ways != 1 || relations != 1 {
		t.Errorf("Counts() = (%d, %d, %d), want (2, 1, 1)", nodes, ways, relations)
	}
}
