package softcut

import (
	"context"
	"testing"
)

// End-to-end round trip: a node inside the region, a way that pulls
// in an out-of-region node, and a relation that references the way
// all end up emitted to that region's writer; nothing else does.
func TestDriverRunEmitsReferenceCompleteExtract(t *testing.T) {
	src := fixture{
		nodes: []NodeVersion{
			{ID: 1, Lon: 1, Lat: 1}, // inside
			{ID: 2, Lon: 9, Lat: 9}, // outside, but pulled in by way 100
			{ID: 3, Lon: 9, Lat: 9}, // outside, never referenced
		},
		ways: []WayVersion{
			{ID: 100, NodeRefs: []int64{1, 2}},
		},
		relations: []RelationVersion{
			{ID: 900, Members: []Member{{Type: MemberWay, Ref: 100}}},
		},
	}

	w := &fakeWriter{}
	st := NewExtractState("region", insideOnly(1, 1), w)
	d := NewDriver(src, []*ExtractState{st})

	regionErrs, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regionErrs) != 0 {
		t.Fatalf("unexpected region errors: %v", regionErrs)
	}

	if len(w.nodes) != 2 {
		t.Fatalf("expected 2 nodes emitted (1 and 2), got %d: %v", len(w.nodes), w.nodes)
	}
	if len(w.ways) != 1 || w.ways[0].ID != 100 {
		t.Fatalf("expected way 100 emitted, got %v", w.ways)
	}
	if len(w.relations) != 1 || w.relations[0].ID != 900 {
		t.Fatalf("expected relation 900 emitted, got %v", w.relations)
	}
	if !w.inited || !w.finaled {
		t.Errorf("expected writer lifecycle Init/Final both called")
	}
}

// A writer failure on one region during pass two is contained: the
// failing region is reported and stops receiving further calls, but
// other regions and the overall Run call still succeed.
func TestDriverContainsPerRegionWriterFailure(t *testing.T) {
	src := fixture{
		nodes: []NodeVersion{
			{ID: 1, Lon: 1, Lat: 1},
			{ID: 2, Lon: 1, Lat: 1},
		},
	}

	failing := &fakeWriter{failOnNode: 1}
	healthy := &fakeWriter{}
	stFail := NewExtractState("fails", insideOnly(1, 1), failing)
	stHealthy := NewExtractState("healthy", insideOnly(1, 1), healthy)

	d := NewDriver(src, []*ExtractState{stFail, stHealthy})
	regionErrs, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if len(regionErrs) != 1 || regionErrs[0].Region != "fails" {
		t.Fatalf("expected exactly one failure for region 'fails', got %v", regionErrs)
	}

	if len(failing.nodes) != 0 {
		t.Errorf("expected failing writer to have emitted nothing, got %v", failing.nodes)
	}
	if len(healthy.nodes) != 2 {
		t.Errorf("expected healthy writer to receive both nodes, got %v", healthy.nodes)
	}
}

// Cancelling the context aborts the run entirely; Run must surface
// the cancellation rather than silently returning a partial success.
func TestDriverPropagatesContextCancellation(t *testing.T) {
	src := cancelingSource{}
	st := NewExtractState("r", insideOnly(1, 1), &fakeWriter{})
	d := NewDriver(src, []*ExtractState{st})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Run(ctx); err == nil {
		t.Fatalf("expected an error from a cancelled run")
	}
}

type cancelingSource struct{}

func (cancelingSource) Drive(ctx context.Context, sink Sink) error {
	return ctx.Err()
}
