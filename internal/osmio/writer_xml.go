package osmio

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm-extract-go/internal/filter"
	"github.com/wegman-software/osm-extract-go/internal/softcut"
)

// XMLWriter emits a region's extract as OSM XML (.osm), encoding each
// object with encoding/xml against paulmach/osm's tagged Node/Way/
// Relation structs rather than a hand-rolled marshaller.
type XMLWriter struct {
	path   string
	filter *filter.Config

	file *os.File
	buf  *bufio.Writer
	enc  *xml.Encoder
}

// NewXMLWriter builds an XMLWriter for path. filterCfg may be nil,
// meaning no tag filtering.
func NewXMLWriter(path string, filterCfg *filter.Config) *XMLWriter {
	if filterCfg == nil {
		filterCfg = filter.Default()
	}
	return &XMLWriter{path: path, filter: filterCfg}
}

func (w *XMLWriter) Init(meta softcut.Meta) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", w.path, err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.enc = xml.NewEncoder(w.buf)

	if _, err := w.buf.WriteString(xml.Header); err != nil {
		return err
	}
	generator := meta.Generator
	if generator == "" {
		generator = "osm-extract-go"
	}
	_, err = fmt.Fprintf(w.buf, "<osm version=\"0.6\" generator=%q>\n", generator)
	return err
}

func (w *XMLWriter) Node(v softcut.NodeVersion) error {
	f := w.filter.ForNodes()
	if !f.Keep(v.Tags) {
		return nil
	}
	n := &osm.Node{
		ID:      osm.NodeID(v.ID),
		Version: v.Version,
		Lat:     v.Lat,
		Lon:     v.Lon,
		Tags:    tagsFromMap(f.Strip(v.Tags)),
	}
	return w.enc.Encode(n)
}

func (w *XMLWriter) AfterNodes() error { return nil }

func (w *XMLWriter) Way(v softcut.WayVersion) error {
	f := w.filter.ForWays()
	if !f.Keep(v.Tags) {
		return nil
	}
	nodes := make(osm.WayNodes, len(v.NodeRefs))
	for i, ref := range v.NodeRefs {
		nodes[i] = osm.WayNode{ID: osm.NodeID(ref)}
	}
	way := &osm.Way{
		ID:      osm.WayID(v.ID),
		Version: v.Version,
		Nodes:   nodes,
		Tags:    tagsFromMap(f.Strip(v.Tags)),
	}
	return w.enc.Encode(way)
}

func (w *XMLWriter) AfterWays() error { return nil }

func (w *XMLWriter) Relation(v softcut.RelationVersion) error {
	f := w.filter.ForRelations()
	if !f.Keep(v.Tags) {
		return nil
	}
	members := make(osm.Members, len(v.Members))
	for i, m := range v.Members {
		members[i] = osm.Member{Type: toOSMType(m.Type), Ref: m.Ref, Role: m.Role}
	}
	rel := &osm.Relation{
		ID:      osm.RelationID(v.ID),
		Version: v.Version,
		Members: members,
		Tags:    tagsFromMap(f.Strip(v.Tags)),
	}
	return w.enc.Encode(rel)
}

func (w *XMLWriter) AfterRelations() error { return nil }

func (w *XMLWriter) Final() error {
	if _, err := w.buf.WriteString("</osm>\n"); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

func tagsFromMap(m map[string]string) osm.Tags {
	if len(m) == 0 {
		return nil
	}
	tags := make(osm.Tags, 0, len(m))
	for k, v := range m {
		tags = append(tags, osm.Tag{Key: k, Value: v})
	}
	return tags
}

func toOSMType(t softcut.MemberType) osm.Type {
	switch t {
	case softcut.MemberWay:
		return osm.TypeWay
	case softcut.MemberRelation:
		return osm.TypeRelation
	default:
		return osm.TypeNode
	}
}
