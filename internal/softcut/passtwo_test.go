package softcut

import "testing"

func TestPassTwoEmitsOnlyTrackedObjects(t *testing.T) {
	w := &fakeWriter{}
	st := NewExtractState("r", insideOnly(1, 1), w)
	st.NodeTracker.Set(1)
	st.ExtraNodeTracker.Set(2)
	st.WayTracker.Set(100)
	st.RelationTracker.Set(900)

	p2 := NewPassTwo([]*ExtractState{st})

	if err := p2.Node(NodeVersion{ID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p2.Node(NodeVersion{ID: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p2.Node(NodeVersion{ID: 3}); err != nil { // untracked, should not be emitted
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p2.Way(WayVersion{ID: 100}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p2.Relation(RelationVersion{ID: 900}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.nodes) != 2 {
		t.Errorf("expected 2 nodes emitted, got %d", len(w.nodes))
	}
	if len(w.ways) != 1 {
		t.Errorf("expected 1 way emitted, got %d", len(w.ways))
	}
	if len(w.relations) != 1 {
		t.Errorf("expected 1 relation emitted, got %d", len(w.relations))
	}

	nodes, ways, relations := p2.Counts()
	if nodes != 3 || ways != 1 || relations != 1 {
		t.Errorf("Counts() = (%d, %d, %d), want (3, 1, 1)", nodes, ways, relations)
	}
}

func TestPassTwoErrorsReflectsOnlyFailedRegions(t *testing.T) {
	good := NewExtractState("good", insideOnly(1, 1), &fakeWriter{})
	bad := NewExtractState("bad", insideOnly(1, 1), &fakeWriter{failOnWay: 5})
	bad.WayTracker.Set(5)

	p2 := NewPassTwo([]*ExtractState{good, bad})
	if err := p2.Way(WayVersion{ID: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	errs := p2.Errors()
	if len(errs) != 1 || errs[0].Region != "bad" {
		t.Fatalf("expected exactly one error for region 'bad', got %v", errs)
	}
}
