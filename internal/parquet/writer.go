// Package parquet holds the low-level Arrow/Parquet record writers
// internal/osmio's ParquetWriter composes into a single softcut.Writer
// per region. Each writer uses the same schema-builder pattern —
// arrow.Schema, array.RecordBuilder, pqarrow.FileWriter — and flushes
// one record batch every batchSize rows, plus a final one on Close.
package parquet

import (
	"encoding/json"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
)

// TagsToJSON serializes a tag map to a JSON string for storage in a
// single Parquet column.
func TagsToJSON(tags map[string]string) string {
	if len(tags) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

// NodeWriter writes node records, with an optional WKB point geometry
// column when geometry output is enabled for this region.
type NodeWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	withGeom  bool
}

// NewNodeWriter creates a node Parquet writer. withGeom adds a
// geom_wkb binary column holding each node's EWKB point geometry.
func NewNodeWriter(path string, batchSize int, withGeom bool) (*NodeWriter, error) {
	fields := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "version", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "lat", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "lon", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
	}
	if withGeom {
		fields = append(fields, arrow.Field{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: false})
	}
	schema := arrow.NewSchema(fields, nil)

	f, writer, builder, err := newFileWriter(path, schema)
	if err != nil {
		return nil, err
	}
	return &NodeWriter{file: f, writer: writer, builder: builder, batchSize: batchSize, withGeom: withGeom}, nil
}

// Write appends one node record. geomWKB is ignored unless this
// writer was created withGeom.
func (w *NodeWriter) Write(id int64, version int, lat, lon float64, tags map[string]string, geomWKB []byte) error {
	w.builder.Field(0).(*array.Int64Builder).Append(id)
	w.builder.Field(1).(*array.Int32Builder).Append(int32(version))
	w.builder.Field(2).(*array.Float64Builder).Append(lat)
	w.builder.Field(3).(*array.Float64Builder).Append(lon)
	w.builder.Field(4).(*array.StringBuilder).Append(TagsToJSON(tags))
	if w.withGeom {
		w.builder.Field(5).(*array.BinaryBuilder).Append(geomWKB)
	}

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *NodeWriter) flush() error { return flushBuilder(w.builder, w.writer, &w.count) }

// Close flushes and closes the writer.
func (w *NodeWriter) Close() error { return closeWriter(w.flush, w.writer, w.file) }

// WayWriter writes way records, with an optional WKB LineString or
// Polygon geometry column.
type WayWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	withGeom  bool
}

// NewWayWriter creates a way Parquet writer.
func NewWayWriter(path string, batchSize int, withGeom bool) (*WayWriter, error) {
	fields := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "version", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
	}
	if withGeom {
		fields = append(fields, arrow.Field{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	f, writer, builder, err := newFileWriter(path, schema)
	if err != nil {
		return nil, err
	}
	return &WayWriter{file: f, writer: writer, builder: builder, batchSize: batchSize, withGeom: withGeom}, nil
}

// Write appends one way record.
func (w *WayWriter) Write(id int64, version int, tags map[string]string, geomWKB []byte) error {
	w.builder.Field(0).(*array.Int64Builder).Append(id)
	w.builder.Field(1).(*array.Int32Builder).Append(int32(version))
	w.builder.Field(2).(*array.StringBuilder).Append(TagsToJSON(tags))
	if w.withGeom {
		gb := w.builder.Field(3).(*array.BinaryBuilder)
		if len(geomWKB) == 0 {
			gb.AppendNull()
		} else {
			gb.Append(geomWKB)
		}
	}

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *WayWriter) flush() error { return flushBuilder(w.builder, w.writer, &w.count) }

// Close flushes and closes the writer.
func (w *WayWriter) Close() error { return closeWriter(w.flush, w.writer, w.file) }

// RelationWriter writes relation records, with an optional WKB
// MultiPolygon geometry column for multipolygon/boundary relations.
type RelationWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	withGeom  bool
}

// NewRelationWriter creates a relation Parquet writer.
func NewRelationWriter(path string, batchSize int, withGeom bool) (*RelationWriter, error) {
	fields := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "version", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
	}
	if withGeom {
		fields = append(fields, arrow.Field{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	f, writer, builder, err := newFileWriter(path, schema)
	if err != nil {
		return nil, err
	}
	return &RelationWriter{file: f, writer: writer, builder: builder, batchSize: batchSize, withGeom: withGeom}, nil
}

// Write appends one relation record.
func (w *RelationWriter) Write(id int64, version int, tags map[string]string, geomWKB []byte) error {
	w.builder.Field(0).(*array.Int64Builder).Append(id)
	w.builder.Field(1).(*array.Int32Builder).Append(int32(version))
	w.builder.Field(2).(*array.StringBuilder).Append(TagsToJSON(tags))
	if w.withGeom {
		gb := w.builder.Field(3).(*array.BinaryBuilder)
		if len(geomWKB) == 0 {
			gb.AppendNull()
		} else {
			gb.Append(geomWKB)
		}
	}

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *RelationWriter) flush() error { return flushBuilder(w.builder, w.writer, &w.count) }

// Close flushes and closes the writer.
func (w *RelationWriter) Close() error { return closeWriter(w.flush, w.writer, w.file) }

func newFileWriter(path string, schema *arrow.Schema) (*os.File, *pqarrow.FileWriter, *array.RecordBuilder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, nil, err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	return f, writer, builder, nil
}

func flushBuilder(builder *array.RecordBuilder, writer *pqarrow.FileWriter, count *int) error {
	if *count == 0 {
		return nil
	}
	rec := builder.NewRecord()
	defer rec.Release()
	err := writer.Write(rec)
	*count = 0
	return err
}

func closeWriter(flush func() error, writer *pqarrow.FileWriter, file *os.File) error {
	if err := flush(); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return file.Close()
}
