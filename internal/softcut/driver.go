package softcut

import (
	"context"
	"fmt"
	"sync"

	"github.com/wegman-software/osm-extract-go/internal/cascade"
)

// Driver sequences the two passes over a re-readable Source: pass
// one builds every region's membership bitsets and the shared cascade
// index, pass two replays the same source and emits the selected
// subset of each object into its region's Writer.
//
// Driver never opens the input itself and never constructs a Writer —
// both are supplied by the caller (internal/osmio, internal/region,
// and cmd/extract.go), keeping this package free of any parser,
// writer, or geometry dependency.
type Driver struct {
	Source Source
	States []*ExtractState

	active struct {
		mu     sync.Mutex
		pass   string
		counts func() (nodes, ways, relations int64)
	}
}

// NewDriver builds a driver over the given re-readable source and
// per-region state bundles.
func NewDriver(src Source, states []*ExtractState) *Driver {
	return &Driver{Source: src, States: states}
}

// Progress reports which pass is currently running and its object
// counts so far, for a caller polling alongside Run from another
// goroutine (e.g. a heartbeat ticker). Before Run starts or after it
// returns, pass is "".
func (d *Driver) Progress() (pass string, nodes, ways, relations int64) {
	d.active.mu.Lock()
	defer d.active.mu.Unlock()
	if d.active.counts == nil {
		return "", 0, 0, 0
	}
	nodes, ways, relations = d.active.counts()
	return d.active.pass, nodes, ways, relations
}

func (d *Driver) setActive(pass string, counts func() (nodes, ways, relations int64)) {
	d.active.mu.Lock()
	defer d.active.mu.Unlock()
	d.active.pass = pass
	d.active.counts = counts
}

// Run drives both passes. If ctx is cancelled mid-pass, Run returns
// ctx.Err() (wrapped) and the caller must treat every region's output
// as incomplete and discard it — there is no checkpointing or partial
// resume. On success, Run returns one RegionError per region whose
// writer failed during pass two; those regions' outputs are
// incomplete, while every other region's output holds every version
// of every selected object. Node refs of a selected way are complete
// only for the way versions that hit the region (see PassOne.Way).
func (d *Driver) Run(ctx context.Context) ([]RegionError, error) {
	defer d.setActive("", nil)
	idx := cascade.New()

	p1 := NewPassOne(d.States, idx)
	d.setActive("pass one", p1.Counts)
	if err := d.Source.Drive(ctx, p1); err != nil {
		return nil, fmt.Errorf("pass one: %w", err)
	}

	p2 := NewPassTwo(d.States)
	d.setActive("pass two", p2.Counts)
	if err := d.Source.Drive(ctx, p2); err != nil {
		return nil, fmt.Errorf("pass two: %w", err)
	}

	return p2.Errors(), nil
}
