package osmio

import (
	"context"
	"testing"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm-extract-go/internal/softcut"
)

// fakeScanner replays a fixed slice of osm.Object in order, standing
// in for osmpbf.Scanner/osmxml.Scanner without touching a real file.
type fakeScanner struct {
	objects []osm.Object
	pos     int
}

func (s *fakeScanner) Scan() bool {
	if s.pos >= len(s.objects) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeScanner) Object() osm.Object { return s.objects[s.pos-1] }
func (s *fakeScanner) Err() error         { return nil }
func (s *fakeScanner) Close() error       { return nil }

// recordingSink counts calls and records the boundary order, so tests
// can assert that phase transitions fire exactly once, in order.
type recordingSink struct {
	events []string
	nodes  []softcut.NodeVersion
	ways   []softcut.WayVersion
	rels   []softcut.RelationVersion
}

func (s *recordingSink) Init(meta softcut.Meta) error { s.events = append(s.events, "init"); return nil }
func (s *recordingSink) Node(v softcut.NodeVersion) error {
	s.nodes = append(s.nodes, v)
	return nil
}
func (s *recordingSink) AfterNodes() error { s.events = append(s.events, "after_nodes"); return nil }
func (s *recordingSink) Way(v softcut.WayVersion) error {
	s.ways = append(s.ways, v)
	return nil
}
func (s *recordingSink) AfterWays() error { s.events = append(s.events, "after_ways"); return nil }
func (s *recordingSink) Relation(v softcut.RelationVersion) error {
	s.rels = append(s.rels, v)
	return nil
}
func (s *recordingSink) AfterRelations() error {
	s.events = append(s.events, "after_relations")
	return nil
}
func (s *recordingSink) Final() error { s.events = append(s.events, "final"); return nil }

func TestDriveFiresBoundariesInOrder(t *testing.T) {
	sc := &fakeScanner{objects: []osm.Object{
		&osm.Node{ID: 1},
		&osm.Node{ID: 2},
		&osm.Way{ID: 10},
		&osm.Relation{ID: 100},
	}}
	sink := &recordingSink{}

	if err := drive(context.Background(), sc, sink, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"init", "after_nodes", "after_ways", "after_relations", "final"}
	if len(sink.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, sink.events)
	}
	for i, e := range want {
		if sink.events[i] != e {
			t.Errorf("event %d: expected %q, got %q", i, e, sink.events[i])
		}
	}
	if len(sink.nodes) != 2 || len(sink.ways) != 1 || len(sink.rels) != 1 {
		t.Errorf("unexpected counts: nodes=%d ways=%d rels=%d", len(sink.nodes), len(sink.ways), len(sink.rels))
	}
}

func TestDriveWithNoWaysStillFiresAfterWays(t *testing.T) {
	sc := &fakeScanner{objects: []osm.Object{
		&osm.Node{ID: 1},
		&osm.Relation{ID: 100},
	}}
	sink := &recordingSink{}

	if err := drive(context.Background(), sc, sink, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"init", "after_nodes", "after_ways", "after_relations", "final"}
	if len(sink.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, sink.events)
	}
}

func TestDriveRejectsOutOfOrderNodeIDs(t *testing.T) {
	sc := &fakeScanner{objects: []osm.Object{
		&osm.Node{ID: 5},
		&osm.Node{ID: 3},
	}}
	sink := &recordingSink{}

	if err := drive(context.Background(), sc, sink, 4); err == nil {
		t.Fatalf("expected an error for non-ascending node ids")
	}
}

func TestDriveRejectsNodeAfterWayPhaseBegan(t *testing.T) {
	sc := &fakeScanner{objects: []osm.Object{
		&osm.Way{ID: 1},
		&osm.Node{ID: 1},
	}}
	sink := &recordingSink{}

	if err := drive(context.Background(), sc, sink, 4); err == nil {
		t.Fatalf("expected an error for a node arriving after the way phase began")
	}
}

func TestDriveEmptyInputStillRunsFullLifecycle(t *testing.T) {
	sc := &fakeScanner{}
	sink := &recordingSink{}

	if err := drive(context.Background(), sc, sink, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"init", "after_nodes", "after_ways", "after_relations", "final"}
	if len(sink.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, sink.events)
	}
}
