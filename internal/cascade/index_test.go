package cascade

import "testing"

func TestAddAndParentsOf(t *testing.T) {
	idx := New()
	idx.Add(500, 600) // relation 600 has relation 500 as a member
	idx.Add(500, 700)

	parents := idx.ParentsOf(500)
	if len(parents) != 2 {
		t.Fatalf("expected 2 parents, got %d: %v", len(parents), parents)
	}
}

func TestParentsOfUnknownIsEmpty(t *testing.T) {
	idx := New()
	if got := idx.ParentsOf(999); len(got) != 0 {
		t.Errorf("expected no parents, got %v", got)
	}
}

func TestCycleDoesNotDeduplicateAtIndexLevel(t *testing.T) {
	// The index itself just records edges; cycle-safety is the
	// cascade walk's responsibility (softcut package), not the
	// index's. 700 -> 800 and 800 -> 700 are both legal edges here.
	idx := New()
	idx.Add(800, 700)
	idx.Add(700, 800)

	if len(idx.ParentsOf(800)) != 1 {
		t.Errorf("expected one parent of 800")
	}
	if len(idx.ParentsOf(700)) != 1 {
		t.Errorf("expected one parent of 700")
	}
}
