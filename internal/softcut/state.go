package softcut

import (
	"github.com/wegman-software/osm-extract-go/internal/bitset"
	"github.com/wegman-software/osm-extract-go/internal/region"
)

// ExtractState is the per-region bundle: the four growing bitsets
// tracking membership, the predicate deciding what belongs, and the
// writer pass two emits into.
//
// A region whose writer fails during pass two is marked Failed and
// skipped for the rest of the run rather than aborting the other
// regions.
type ExtractState struct {
	Name string
	Pred region.Predicate
	Dest Writer

	NodeTracker      *bitset.GrowingBitset
	ExtraNodeTracker *bitset.GrowingBitset
	WayTracker       *bitset.GrowingBitset
	RelationTracker  *bitset.GrowingBitset

	Failed  bool
	FailErr error
}

// NewExtractState creates an empty tracker bundle for one region.
func NewExtractState(name string, pred region.Predicate, dest Writer) *ExtractState {
	return &ExtractState{
		Name:             name,
		Pred:             pred,
		Dest:             dest,
		NodeTracker:      bitset.New(),
		ExtraNodeTracker: bitset.New(),
		WayTracker:       bitset.New(),
		RelationTracker:  bitset.New(),
	}
}

// fail marks the region as having had a writer error, recording the
// first such error and discarding its output silently from then on.
func (s *ExtractState) fail(err error) {
	if s.Failed {
		return
	}
	s.Failed = true
	s.FailErr = err
}

// RegionError pairs a region name with the writer error that took it
// out of a pass-two run.
type RegionError struct {
	Region string
	Err    error
}

func (e RegionError) Error() string {
	return "region " + e.Region + ": " + e.Err.Error()
}
