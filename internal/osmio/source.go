// Package osmio adapts real OSM container formats onto
// internal/softcut's format-agnostic Sink/Source/Writer contracts.
// Parsing lives here via github.com/paulmach/osm's PBF and XML
// scanners; the softcut package never imports this one.
package osmio

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"

	"github.com/wegman-software/osm-extract-go/internal/softcut"
)

// scanner is the subset of osm.Scanner Drive needs, shared by
// osmpbf.Scanner and osmxml.Scanner.
type scanner interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Close() error
}

// defaultChannelBuffer is used when a Source's ChannelBuffer is left
// at its zero value.
const defaultChannelBuffer = 50000

// PBFSource drives a softcut pass by scanning an OSM PBF file fresh
// on every call to Drive, satisfying the re-readable Source contract.
type PBFSource struct {
	Path    string
	Workers int

	// ChannelBuffer sizes the channel decoupling the scan goroutine
	// from sink processing, so slow per-object writer work doesn't
	// stall the decode workers' own buffering inside osmpbf.Scanner.
	ChannelBuffer int
}

// NewPBFSource builds a PBFSource that reopens path and scans it with
// the given worker count and channel buffer size on every Drive call.
func NewPBFSource(path string, workers, channelBuffer int) *PBFSource {
	if workers < 1 {
		workers = 1
	}
	return &PBFSource{Path: path, Workers: workers, ChannelBuffer: channelBuffer}
}

func (s *PBFSource) Drive(ctx context.Context, sink softcut.Sink) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", s.Path, err)
	}
	defer f.Close()

	sc := osmpbf.New(ctx, f, s.Workers)
	defer sc.Close()

	return drive(ctx, sc, sink, s.ChannelBuffer)
}

// XMLSource drives a softcut pass by scanning an OSM XML file (.osm)
// fresh on every call to Drive.
type XMLSource struct {
	Path string

	// ChannelBuffer sizes the channel decoupling the scan goroutine
	// from sink processing.
	ChannelBuffer int
}

// NewXMLSource builds an XMLSource over path with the given channel
// buffer size.
func NewXMLSource(path string, channelBuffer int) *XMLSource {
	return &XMLSource{Path: path, ChannelBuffer: channelBuffer}
}

func (s *XMLSource) Drive(ctx context.Context, sink softcut.Sink) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", s.Path, err)
	}
	defer f.Close()

	sc := osmxml.New(ctx, f)
	defer sc.Close()

	return drive(ctx, sc, sink, s.ChannelBuffer)
}

// drive replays sc's objects into sink, detecting the node/way and
// way/relation boundaries by watching for the first object of the
// next type and enforcing a monotonic-id-within-type precondition,
// treated as fatal rather than something to silently sort around —
// this package assumes its input is already a standard type-grouped,
// id-ascending OSM extract, as any planet dump or osmium/osmconvert
// output is.
//
// Scanning happens in its own goroutine feeding a buffered channel,
// sized by channelBuffer, so a slow Writer further down the chain
// doesn't stall the scanner between Scan() calls.
func drive(ctx context.Context, sc scanner, sink softcut.Sink, channelBuffer int) error {
	if channelBuffer < 1 {
		channelBuffer = defaultChannelBuffer
	}

	if err := sink.Init(softcut.Meta{}); err != nil {
		return fmt.Errorf("sink init: %w", err)
	}

	// A derived, cancel-on-return context so that any early return below
	// (a precondition violation, a Sink error) unblocks the scan
	// goroutine if it's parked trying to send, instead of leaking it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := make(chan osm.Object, channelBuffer)
	scanErr := make(chan error, 1)
	go func() {
		defer close(objects)
		for sc.Scan() {
			select {
			case objects <- sc.Object():
			case <-ctx.Done():
				scanErr <- ctx.Err()
				return
			}
		}
		scanErr <- sc.Err()
	}()

	var (
		phase      = phaseNodes
		lastNodeID int64
		lastWayID  int64
		lastRelID  int64
	)

	for o := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch o := o.(type) {
		case *osm.Node:
			if phase != phaseNodes {
				return fmt.Errorf("malformed input: node %d encountered after %s phase began", o.ID, phase)
			}
			id := int64(o.ID)
			if id < lastNodeID {
				return fmt.Errorf("malformed input: node ids not ascending (%d after %d)", id, lastNodeID)
			}
			lastNodeID = id
			if err := sink.Node(softcut.NodeVersion{
				ID:        id,
				Version:   o.Version,
				Timestamp: o.Timestamp,
				Lon:       o.Lon,
				Lat:       o.Lat,
				Tags:      o.Tags.Map(),
			}); err != nil {
				return fmt.Errorf("node %d: %w", id, err)
			}

		case *osm.Way:
			if phase == phaseNodes {
				if err := sink.AfterNodes(); err != nil {
					return fmt.Errorf("after nodes: %w", err)
				}
				phase = phaseWays
			}
			id := int64(o.ID)
			if id < lastWayID {
				return fmt.Errorf("malformed input: way ids not ascending (%d after %d)", id, lastWayID)
			}
			lastWayID = id
			refs := make([]int64, len(o.Nodes))
			for i, n := range o.Nodes {
				refs[i] = int64(n.ID)
			}
			if err := sink.Way(softcut.WayVersion{
				ID:        id,
				Version:   o.Version,
				Timestamp: o.Timestamp,
				NodeRefs:  refs,
				Tags:      o.Tags.Map(),
			}); err != nil {
				return fmt.Errorf("way %d: %w", id, err)
			}

		case *osm.Relation:
			if phase != phaseRelations {
				if phase == phaseNodes {
					if err := sink.AfterNodes(); err != nil {
						return fmt.Errorf("after nodes: %w", err)
					}
				}
				if err := sink.AfterWays(); err != nil {
					return fmt.Errorf("after ways: %w", err)
				}
				phase = phaseRelations
			}
			id := int64(o.ID)
			if id < lastRelID {
				return fmt.Errorf("malformed input: relation ids not ascending (%d after %d)", id, lastRelID)
			}
			lastRelID = id
			members := make([]softcut.Member, len(o.Members))
			for i, m := range o.Members {
				members[i] = softcut.Member{Type: memberType(m.Type), Ref: m.Ref, Role: m.Role}
			}
			if err := sink.Relation(softcut.RelationVersion{
				ID:        id,
				Version:   o.Version,
				Timestamp: o.Timestamp,
				Members:   members,
				Tags:      o.Tags.Map(),
			}); err != nil {
				return fmt.Errorf("relation %d: %w", id, err)
			}

		default:
			return fmt.Errorf("malformed input: unexpected object type %T", o)
		}
	}
	if err := <-scanErr; err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	switch phase {
	case phaseNodes:
		if err := sink.AfterNodes(); err != nil {
			return fmt.Errorf("after nodes: %w", err)
		}
		fallthrough
	case phaseWays:
		if err := sink.AfterWays(); err != nil {
			return fmt.Errorf("after ways: %w", err)
		}
	}
	if err := sink.AfterRelations(); err != nil {
		return fmt.Errorf("after relations: %w", err)
	}
	return sink.Final()
}

type phase int

const (
	phaseNodes phase = iota
	phaseWays
	phaseRelations
)

func (p phase) String() string {
	switch p {
	case phaseNodes:
		return "node"
	case phaseWays:
		return "way"
	default:
		return "relation"
	}
}

func memberType(t osm.Type) softcut.MemberType {
	switch t {
	case osm.TypeWay:
		return softcut.MemberWay
	case osm.TypeRelation:
		return softcut.MemberRelation
	default:
		return softcut.MemberNode
	}
}
