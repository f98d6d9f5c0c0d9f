// Package softcut implements the softcut region extractor: the
// two-pass, bitset-tracked algorithm that selects, for each configured
// region, the set of OSM object versions belonging to that region's
// extract, with ways reference-complete for every way version that hit
// the region in pass one (see PassOne.Way).
//
// This package intentionally imports no OSM container-format parser,
// no writer, and no geometry library. It consumes whatever feeds it
// through the Sink interface and emits through the opaque Predicate
// (github.com/wegman-software/osm-extract-go/internal/region) and
// Writer contracts — parsing, writing and geometry are collaborators
// that live in internal/osmio and internal/region.
package softcut

import (
	"context"
	"time"
)

// MemberType is the type of an OSM relation member.
type MemberType int

const (
	MemberNode MemberType = iota
	MemberWay
	MemberRelation
)

// Meta carries stream header information, passed to every Sink's Init
// call and forwarded verbatim by PassTwo to every Writer's Init call.
// The internal/osmio sources do not read the input's header and always
// pass a zero Meta.
type Meta struct {
	Generator   string
	Attribution string
	Timestamp   time.Time
}

// NodeVersion is one historical revision of a node. The core reads
// only ID, Lon and Lat; Version, Timestamp and Tags ride along
// untouched so a Writer can reproduce a faithful object.
type NodeVersion struct {
	ID        int64
	Version   int
	Timestamp time.Time
	Lon       float64
	Lat       float64
	Tags      map[string]string
}

// WayVersion is one historical revision of a way. The core reads only
// ID and NodeRefs.
type WayVersion struct {
	ID        int64
	Version   int
	Timestamp time.Time
	NodeRefs  []int64
	Tags      map[string]string
}

// Member is one entry of a relation's member list.
type Member struct {
	Type MemberType
	Ref  int64
	Role string
}

// RelationVersion is one historical revision of a relation. The core
// reads only ID and Members.
type RelationVersion struct {
	ID        int64
	Version   int
	Timestamp time.Time
	Members   []Member
	Tags      map[string]string
}

// Sink is the input-stream callback contract: one call per record,
// in type-grouped, id-sorted, version-sorted order, with boundary
// calls between phases. PassOne and PassTwo are the two concrete
// Sinks this package provides.
type Sink interface {
	Init(meta Meta) error
	Node(v NodeVersion) error
	AfterNodes() error
	Way(v WayVersion) error
	AfterWays() error
	Relation(v RelationVersion) error
	AfterRelations() error
	Final() error
}

// Writer is the per-region output contract. Its shape mirrors Sink
// because pass two is, per object, just a filtered re-emission of the
// same stream into whichever region selected it.
type Writer interface {
	Init(meta Meta) error
	Node(v NodeVersion) error
	AfterNodes() error
	Way(v WayVersion) error
	AfterWays() error
	Relation(v RelationVersion) error
	AfterRelations() error
	Final() error
}

// Source drives one full pass of the input into sink. Implementations
// own re-readability: the Driver calls Drive twice, once for pass one
// and once for pass two, and each call must replay the complete
// stream from the start regardless of how the previous call left
// anything positioned.
type Source interface {
	Drive(ctx context.Context, sink Sink) error
}
