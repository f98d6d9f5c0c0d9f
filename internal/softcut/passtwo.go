package softcut

import "sync/atomic"

// PassTwo is the emission Sink. For every object it re-checks each
// region's bitsets (no membership decisions are made in this pass,
// only lookups) and forwards a copy to every region whose tracker
// says yes.
//
// A region whose Writer returns an error is marked failed and
// silently skipped for the remainder of the run; it does not abort
// pass two for the other regions.
type PassTwo struct {
	states []*ExtractState

	nodes, ways, relations atomic.Int64
}

// Counts reports how many nodes, ways, and relations this pass has
// seen so far, safe to call concurrently with Node/Way/Relation.
func (p *PassTwo) Counts() (nodes, ways, relations int64) {
	return p.nodes.Load(), p.ways.Load(), p.relations.Load()
}

// NewPassTwo builds a PassTwo over the given region states. States
// must be the same slice (or an equivalent one, in the same order)
// that PassOne populated.
func NewPassTwo(states []*ExtractState) *PassTwo {
	return &PassTwo{states: states}
}

func (p *PassTwo) Init(meta Meta) error {
	for _, st := range p.states {
		if st.Failed {
			continue
		}
		if err := st.Dest.Init(meta); err != nil {
			st.fail(err)
		}
	}
	return nil
}

func (p *PassTwo) Node(v NodeVersion) error {
	p.nodes.Add(1)
	for _, st := range p.states {
		if st.Failed {
			continue
		}
		if !st.NodeTracker.Get(v.ID) && !st.ExtraNodeTracker.Get(v.ID) {
			continue
		}
		if err := st.Dest.Node(v); err != nil {
			st.fail(err)
		}
	}
	return nil
}

func (p *PassTwo) AfterNodes() error {
	for _, st := range p.states {
		if st.Failed {
			continue
		}
		if err := st.Dest.AfterNodes(); err != nil {
			st.fail(err)
		}
	}
	return nil
}

func (p *PassTwo) Way(v WayVersion) error {
	p.ways.Add(1)
	for _, st := range p.states {
		if st.Failed {
			continue
		}
		if !st.WayTracker.Get(v.ID) {
			continue
		}
		if err := st.Dest.Way(v); err != nil {
			st.fail(err)
		}
	}
	return nil
}

func (p *PassTwo) AfterWays() error {
	for _, st := range p.states {
		if st.Failed {
			continue
		}
		if err := st.Dest.AfterWays(); err != nil {
			st.fail(err)
		}
	}
	return nil
}

func (p *PassTwo) Relation(v RelationVersion) error {
	p.relations.Add(1)
	for _, st := range p.states {
		if st.Failed {
			continue
		}
		if !st.RelationTracker.Get(v.ID) {
			continue
		}
		if err := st.Dest.Relation(v); err != nil {
			st.fail(err)
		}
	}
	return nil
}

func (p *PassTwo) AfterRelations() error {
	for _, st := range p.states {
		if st.Failed {
			continue
		}
		if err := st.Dest.AfterRelations(); err != nil {
			st.fail(err)
		}
	}
	return nil
}

func (p *PassTwo) Final() error {
	for _, st := range p.states {
		if st.Failed {
			continue
		}
		if err := st.Dest.Final(); err != nil {
			st.fail(err)
		}
	}
	return nil
}

// Errors returns one RegionError per region that failed during this
// pass, in state order.
func (p *PassTwo) Errors() []RegionError {
	var errs []RegionError
	for _, st := range p.states {
		if st.Failed {
			errs = append(errs, RegionError{Region: st.Name, Err: st.FailErr})
		}
	}
	return errs
}
