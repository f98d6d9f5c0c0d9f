package osmio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wegman-software/osm-extract-go/internal/filter"
	"github.com/wegman-software/osm-extract-go/internal/nodeindex"
	"github.com/wegman-software/osm-extract-go/internal/parquet"
	"github.com/wegman-software/osm-extract-go/internal/proj"
	"github.com/wegman-software/osm-extract-go/internal/softcut"
	"github.com/wegman-software/osm-extract-go/internal/wkb"
)

// ParquetWriter emits a region's extract as three Parquet files
// (nodes, ways, relations) under dir, composing internal/parquet's
// Arrow-backed per-type writers behind softcut's Writer contract.
// When WithGeometry is set, way and relation geometry is resolved
// through a scratch internal/nodeindex cache and encoded as EWKB via
// internal/wkb, reprojected through internal/proj when TargetSRID
// differs from WGS84.
type ParquetWriter struct {
	Dir          string
	BatchSize    int
	WithGeometry bool
	TargetSRID   int
	Filter       *filter.Config

	nodes    *parquet.NodeWriter
	ways     *parquet.WayWriter
	relas    *parquet.RelationWriter
	coords   *nodeindex.MmapIndex
	wayCache map[int64][]float64 // flat lon,lat pairs, reprojected
	encoder  *wkb.Encoder
	trans    *proj.Transformer
}

func (w *ParquetWriter) Init(meta softcut.Meta) error {
	if w.Filter == nil {
		w.Filter = filter.Default()
	}
	if w.BatchSize < 1 {
		w.BatchSize = 50_000
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir %q: %w", w.Dir, err)
	}

	var err error
	w.nodes, err = parquet.NewNodeWriter(filepath.Join(w.Dir, "nodes.parquet"), w.BatchSize, w.WithGeometry)
	if err != nil {
		return fmt.Errorf("failed to open nodes.parquet: %w", err)
	}
	w.ways, err = parquet.NewWayWriter(filepath.Join(w.Dir, "ways.parquet"), w.BatchSize, w.WithGeometry)
	if err != nil {
		return fmt.Errorf("failed to open ways.parquet: %w", err)
	}
	w.relas, err = parquet.NewRelationWriter(filepath.Join(w.Dir, "relations.parquet"), w.BatchSize, w.WithGeometry)
	if err != nil {
		return fmt.Errorf("failed to open relations.parquet: %w", err)
	}

	if w.WithGeometry {
		srid := w.TargetSRID
		if srid == 0 {
			srid = proj.SRID4326
		}
		trans, err := proj.NewTransformer(proj.SRID4326, srid)
		if err != nil {
			return fmt.Errorf("failed to build coordinate transformer: %w", err)
		}
		w.trans = trans
		w.encoder = wkb.NewEncoderWithSRID(64, srid)

		idx, err := nodeindex.NewMmapIndex(filepath.Join(w.Dir, ".nodeindex.tmp"))
		if err != nil {
			return fmt.Errorf("failed to create node index: %w", err)
		}
		w.coords = idx
		w.wayCache = make(map[int64][]float64)
	}
	return nil
}

func (w *ParquetWriter) Node(v softcut.NodeVersion) error {
	if w.WithGeometry {
		w.coords.Put(v.ID, v.Lat, v.Lon)
	}

	f := w.Filter.ForNodes()
	if !f.Keep(v.Tags) {
		return nil
	}

	var geomWKB []byte
	if w.WithGeometry {
		x, y := w.trans.Transform(v.Lon, v.Lat)
		geomWKB = w.encoder.EncodePoint(x, y)
	}
	return w.nodes.Write(v.ID, v.Version, v.Lat, v.Lon, f.Strip(v.Tags), geomWKB)
}

func (w *ParquetWriter) AfterNodes() error { return nil }

func (w *ParquetWriter) Way(v softcut.WayVersion) error {
	var flat []float64
	if w.WithGeometry {
		flat = make([]float64, 0, len(v.NodeRefs)*2)
		for _, ref := range v.NodeRefs {
			if lat, lon, ok := w.coords.Get(ref); ok {
				x, y := w.trans.Transform(lon, lat)
				flat = append(flat, x, y)
			}
		}
		w.wayCache[v.ID] = flat
	}

	f := w.Filter.ForWays()
	if !f.Keep(v.Tags) {
		return nil
	}

	var geomWKB []byte
	if w.WithGeometry && len(flat) >= 4 {
		if flat[0] == flat[len(flat)-2] && flat[1] == flat[len(flat)-1] {
			geomWKB = w.encoder.EncodePolygon(flat)
		} else {
			geomWKB = w.encoder.EncodeLineString(flat)
		}
	}
	return w.ways.Write(v.ID, v.Version, f.Strip(v.Tags), geomWKB)
}

func (w *ParquetWriter) AfterWays() error { return nil }

func (w *ParquetWriter) Relation(v softcut.RelationVersion) error {
	f := w.Filter.ForRelations()
	if !f.Keep(v.Tags) {
		return nil
	}

	var geomWKB []byte
	if w.WithGeometry && (v.Tags["type"] == "multipolygon" || v.Tags["type"] == "boundary") {
		geomWKB = w.assembleMultipolygonWKB(v.Members)
	}
	return w.relas.Write(v.ID, v.Version, f.Strip(v.Tags), geomWKB)
}

func (w *ParquetWriter) assembleMultipolygonWKB(members []softcut.Member) []byte {
	var rings [][]float64
	for _, m := range members {
		if m.Type != softcut.MemberWay {
			continue
		}
		flat, ok := w.wayCache[m.Ref]
		if !ok || len(flat) < 8 {
			continue
		}
		rings = append(rings, flat)
	}
	if len(rings) == 0 {
		return nil
	}
	// Each way becomes its own single-ring polygon; true multi-way ring
	// chaining (shared, unclosed segments) is handled by the GeoJSON
	// writer's assembleRings, not duplicated here.
	polys := make([][][]float64, 0, len(rings))
	for _, ring := range rings {
		polys = append(polys, [][]float64{ring})
	}
	return w.encoder.EncodeMultiPolygon(polys)
}

func (w *ParquetWriter) AfterRelations() error { return nil }

func (w *ParquetWriter) Final() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(w.nodes.Close())
	record(w.ways.Close())
	record(w.relas.Close())
	if w.WithGeometry {
		w.coords.Close()
		os.Remove(filepath.Join(w.Dir, ".nodeindex.tmp"))
	}
	return firstErr
}
