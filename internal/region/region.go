// Package region loads the per-extract configuration consumed at
// startup: a name, a geometry predicate, and an output handle. The
// predicate itself stays opaque to internal/softcut — this package is
// one concrete source of it, built on bounding boxes or GeoJSON
// polygons.
package region

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osm-extract-go/internal/logger"
)

// Predicate is the opaque contains(lon, lat) -> bool oracle required
// per region.
type Predicate interface {
	Contains(lon, lat float64) bool
}

// Spec is one entry of a regions file: a name, exactly one of bbox or
// polygon_file, and an output path.
type Spec struct {
	Name        string `yaml:"name"`
	BBox        string `yaml:"bbox,omitempty"`
	PolygonFile string `yaml:"polygon_file,omitempty"`
	Output      string `yaml:"output"`
}

// file is the on-disk shape of a regions YAML file.
type file struct {
	Regions []Spec `yaml:"regions"`
}

// Load reads and parses a regions YAML file.
func Load(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse regions YAML: %w", err)
	}

	if len(f.Regions) == 0 {
		return nil, fmt.Errorf("regions file %q defines no regions", path)
	}

	seen := make(map[string]bool, len(f.Regions))
	for _, r := range f.Regions {
		if r.Name == "" {
			return nil, fmt.Errorf("region with empty name")
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate region name %q", r.Name)
		}
		seen[r.Name] = true

		if r.BBox == "" && r.PolygonFile == "" {
			return nil, fmt.Errorf("region %q needs a bbox or a polygon_file", r.Name)
		}
		if r.BBox != "" && r.PolygonFile != "" {
			return nil, fmt.Errorf("region %q must set only one of bbox, polygon_file", r.Name)
		}
		if r.Output == "" {
			return nil, fmt.Errorf("region %q has no output path", r.Name)
		}
	}

	return f.Regions, nil
}

// Predicate builds the concrete region.Predicate for this spec,
// loading a polygon file from disk when one is configured.
func (s Spec) Predicate() (Predicate, error) {
	if s.BBox != "" {
		return ParseBBox(s.BBox)
	}
	return LoadPolygon(s.Name, s.PolygonFile)
}

// BBoxPredicate is a rectangular region in lon/lat.
type BBoxPredicate struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Contains implements Predicate.
func (b *BBoxPredicate) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// ParseBBox parses "minlon,minlat,maxlon,maxlat" into a BBoxPredicate.
func ParseBBox(s string) (*BBoxPredicate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 comma-separated values, got %q", s)
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	b := &BBoxPredicate{MinLon: coords[0], MinLat: coords[1], MaxLon: coords[2], MaxLat: coords[3]}
	if b.MinLon > b.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", b.MinLon, b.MaxLon)
	}
	if b.MinLat > b.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", b.MinLat, b.MaxLat)
	}
	return b, nil
}

// PolygonPredicate tests point-in-polygon against one or more
// polygons loaded from a GeoJSON file, accepting a point inside any
// of them (outer ring minus holes).
type PolygonPredicate struct {
	name     string
	polygons []orb.Polygon

	loggedPanic sync.Once
}

// Contains implements Predicate. A predicate failure (should not
// normally occur once loaded; kept for panic-safety around
// region-predicate evaluation) is swallowed as "not contained," and
// logged once per region at debug level rather than once per point,
// to avoid log storms on a planet-scale run.
func (p *PolygonPredicate) Contains(lon, lat float64) (contained bool) {
	defer func() {
		if r := recover(); r != nil {
			contained = false
			p.loggedPanic.Do(func() {
				logger.Get().Debug("polygon predicate recovered from panic",
					zap.String("region", p.name),
					zap.Any("panic", r),
				)
			})
		}
	}()

	pt := orb.Point{lon, lat}
	for _, poly := range p.polygons {
		if planar.PolygonContains(poly, pt) {
			return true
		}
	}
	return false
}

// LoadPolygon reads a GeoJSON file (a single Polygon/MultiPolygon
// geometry, a Feature, or a FeatureCollection of either) and builds a
// PolygonPredicate from every polygon found in it. name identifies
// the owning region in logs emitted by the predicate.
func LoadPolygon(name, path string) (*PolygonPredicate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read polygon file: %w", err)
	}

	polys, err := extractPolygons(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse polygon file %q: %w", path, err)
	}
	if len(polys) == 0 {
		return nil, fmt.Errorf("polygon file %q contains no polygon geometry", path)
	}

	return &PolygonPredicate{name: name, polygons: polys}, nil
}

func extractPolygons(data []byte) ([]orb.Polygon, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		var polys []orb.Polygon
		for _, f := range fc.Features {
			polys = append(polys, geometryPolygons(f.Geometry)...)
		}
		return polys, nil
	}

	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return geometryPolygons(f.Geometry), nil
	}

	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	return geometryPolygons(geom.Geometry()), nil
}

func geometryPolygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return v
	default:
		return nil
	}
}
