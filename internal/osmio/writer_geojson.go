package osmio

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wegman-software/osm-extract-go/internal/filter"
	"github.com/wegman-software/osm-extract-go/internal/nodeindex"
	"github.com/wegman-software/osm-extract-go/internal/softcut"
)

// GeoJSONWriter emits a region's extract as a GeoJSON FeatureCollection
// behind softcut's Writer contract, using a wayCache-based multipolygon
// ring assembly and paulmach/orb/geojson for marshalling.
//
// Node coordinates are cached in a memory-mapped internal/nodeindex
// instance scoped to this writer so way and relation geometry can be
// resolved after pass two's node phase completes — this is purely an
// output-time concern; membership is already decided by the time this
// writer sees anything.
type GeoJSONWriter struct {
	path      string
	indexPath string
	filter    *filter.Config
	nodes     *nodeindex.MmapIndex
	wayCache  map[int64][]orb.Point
	fc        *geojson.FeatureCollection
}

// NewGeoJSONWriter builds a GeoJSONWriter writing to path, using
// indexPath as scratch space for its node-coordinate cache.
func NewGeoJSONWriter(path, indexPath string, filterCfg *filter.Config) *GeoJSONWriter {
	if filterCfg == nil {
		filterCfg = filter.Default()
	}
	return &GeoJSONWriter{path: path, indexPath: indexPath, filter: filterCfg}
}

func (w *GeoJSONWriter) Init(meta softcut.Meta) error {
	idx, err := nodeindex.NewMmapIndex(w.indexPath)
	if err != nil {
		return fmt.Errorf("failed to create node index: %w", err)
	}
	w.nodes = idx
	w.wayCache = make(map[int64][]orb.Point)
	w.fc = geojson.NewFeatureCollection()
	return nil
}

func (w *GeoJSONWriter) Node(v softcut.NodeVersion) error {
	w.nodes.Put(v.ID, v.Lat, v.Lon)

	f := w.filter.ForNodes()
	if !f.Keep(v.Tags) {
		return nil
	}
	feat := geojson.NewFeature(orb.Point{v.Lon, v.Lat})
	feat.ID = v.ID
	feat.Properties = tagProperties(f.Strip(v.Tags))
	w.fc.Append(feat)
	return nil
}

func (w *GeoJSONWriter) AfterNodes() error { return nil }

func (w *GeoJSONWriter) Way(v softcut.WayVersion) error {
	coords := make([]orb.Point, 0, len(v.NodeRefs))
	for _, ref := range v.NodeRefs {
		if lat, lon, ok := w.nodes.Get(ref); ok {
			coords = append(coords, orb.Point{lon, lat})
		}
	}
	isRing := len(coords) >= 4 && coords[0] == coords[len(coords)-1]
	w.wayCache[v.ID] = coords

	f := w.filter.ForWays()
	if !f.Keep(v.Tags) || len(coords) < 2 {
		return nil
	}

	var geom orb.Geometry
	if isRing && hasAreaTag(v.Tags) {
		geom = orb.Polygon{orb.Ring(coords)}
	} else {
		geom = orb.LineString(coords)
	}

	feat := geojson.NewFeature(geom)
	feat.ID = v.ID
	feat.Properties = tagProperties(f.Strip(v.Tags))
	w.fc.Append(feat)
	return nil
}

func (w *GeoJSONWriter) AfterWays() error { return nil }

func (w *GeoJSONWriter) Relation(v softcut.RelationVersion) error {
	f := w.filter.ForRelations()
	if !f.Keep(v.Tags) {
		return nil
	}

	var geom orb.Geometry
	if v.Tags["type"] == "multipolygon" || v.Tags["type"] == "boundary" {
		geom = w.assembleMultipolygon(v.Members)
	}

	feat := geojson.NewFeature(geom)
	feat.ID = v.ID
	feat.Properties = tagProperties(f.Strip(v.Tags))
	w.fc.Append(feat)
	return nil
}

// assembleMultipolygon builds a MultiPolygon from a relation's outer
// and inner member ways, chaining way segments that don't individually
// close into rings by matching shared endpoints. A ring that can't be
// closed from the available segments is dropped rather than emitted
// malformed.
func (w *GeoJSONWriter) assembleMultipolygon(members []softcut.Member) orb.Geometry {
	var outerChains, innerChains [][]orb.Point
	for _, m := range members {
		if m.Type != softcut.MemberWay {
			continue
		}
		coords, ok := w.wayCache[m.Ref]
		if !ok || len(coords) < 2 {
			continue
		}
		if m.Role == "inner" {
			innerChains = append(innerChains, coords)
		} else {
			outerChains = append(outerChains, coords)
		}
	}

	outerRings := assembleRings(outerChains)
	innerRings := assembleRings(innerChains)
	if len(outerRings) == 0 {
		return nil
	}

	polys := make(orb.MultiPolygon, 0, len(outerRings))
	for _, ring := range outerRings {
		poly := orb.Polygon{ring}
		poly = append(poly, innerRings...)
		polys = append(polys, poly)
	}
	return polys
}

// assembleRings chains way coordinate segments sharing endpoints into
// closed rings.
func assembleRings(chains [][]orb.Point) []orb.Ring {
	used := make([]bool, len(chains))
	var rings []orb.Ring

	for start := range chains {
		if used[start] {
			continue
		}
		used[start] = true
		ring := append([]orb.Point{}, chains[start]...)

		for {
			if len(ring) >= 2 && ring[0] == ring[len(ring)-1] {
				break
			}
			extended := false
			for i, chain := range chains {
				if used[i] || len(chain) == 0 {
					continue
				}
				last := ring[len(ring)-1]
				switch {
				case chain[0] == last:
					ring = append(ring, chain[1:]...)
				case chain[len(chain)-1] == last:
					for j := len(chain) - 2; j >= 0; j-- {
						ring = append(ring, chain[j])
					}
				default:
					continue
				}
				used[i] = true
				extended = true
				break
			}
			if !extended {
				break
			}
		}

		if len(ring) >= 4 && ring[0] == ring[len(ring)-1] {
			rings = append(rings, orb.Ring(ring))
		}
	}
	return rings
}

func hasAreaTag(tags map[string]string) bool {
	if tags["area"] == "yes" {
		return true
	}
	if _, ok := tags["building"]; ok {
		return true
	}
	switch tags["natural"] {
	case "water", "wood", "scrub", "wetland":
		return true
	}
	return false
}

func tagProperties(tags map[string]string) geojson.Properties {
	props := make(geojson.Properties, len(tags))
	for k, v := range tags {
		props[k] = v
	}
	return props
}

func (w *GeoJSONWriter) AfterRelations() error { return nil }

func (w *GeoJSONWriter) Final() error {
	defer w.nodes.Close()
	defer os.Remove(w.indexPath)

	data, err := w.fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	if err := os.WriteFile(w.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %q: %w", w.path, err)
	}
	return nil
}
