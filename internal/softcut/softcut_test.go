package softcut

import "context"

// fakePredicate lets tests decide region membership by raw coordinate
// equality instead of wiring a real internal/region predicate.
type fakePredicate struct {
	contains func(lon, lat float64) bool
}

func (f fakePredicate) Contains(lon, lat float64) bool { return f.contains(lon, lat) }

// fakeWriter records every call it receives so tests can assert on
// exactly what pass two emitted, and can be told to fail on a given
// object id to exercise the per-region failure-containment policy.
type fakeWriter struct {
	failOnNode int64
	failOnWay  int64
	failOnRel  int64

	inited    bool
	nodes     []NodeVersion
	ways      []WayVersion
	relations []RelationVersion
	finaled   bool
}

func (w *fakeWriter) Init(meta Meta) error { w.inited = true; return nil }

func (w *fakeWriter) Node(v NodeVersion) error {
	if w.failOnNode != 0 && v.ID == w.failOnNode {
		return errFakeWriter
	}
	w.nodes = append(w.nodes, v)
	return nil
}

func (w *fakeWriter) AfterNodes() error { return nil }

func (w *fakeWriter) Way(v WayVersion) error {
	if w.failOnWay != 0 && v.ID == w.failOnWay {
		return errFakeWriter
	}
	w.ways = append(w.ways, v)
	return nil
}

func (w *fakeWriter) AfterWays() error { return nil }

func (w *fakeWriter) Relation(v RelationVersion) error {
	if w.failOnRel != 0 && v.ID == w.failOnRel {
		return errFakeWriter
	}
	w.relations = append(w.relations, v)
	return nil
}

func (w *fakeWriter) AfterRelations() error { return nil }

func (w *fakeWriter) Final() error { w.finaled = true; return nil }

var errFakeWriter = fakeErr("fake writer failure")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

// fixture is an in-memory Source: a fixed stream of nodes, ways, and
// relations, replayed in full on every Drive call, satisfying the
// re-readability contract Driver relies on.
type fixture struct {
	nodes     []NodeVersion
	ways      []WayVersion
	relations []RelationVersion
}

func (f fixture) Drive(ctx context.Context, sink Sink) error {
	if err := sink.Init(Meta{}); err != nil {
		return err
	}
	for _, n := range f.nodes {
		if err := sink.Node(n); err != nil {
			return err
		}
	}
	if err := sink.AfterNodes(); err != nil {
		return err
	}
	for _, w := range f.ways {
		if err := sink.Way(w); err != nil {
			return err
		}
	}
	if err := sink.AfterWays(); err != nil {
		return err
	}
	for _, r := range f.relations {
		if err := sink.Relation(r); err != nil {
			return err
		}
	}
	if err := sink.AfterRelations(); err != nil {
		return err
	}
	return sink.Final()
}
