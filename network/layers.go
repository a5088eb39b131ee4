package network

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"

	gpkg "github.com/tingold/gpkg-wkb"
	"github.com/tingold/gpkg-wkb/internal/log"
)

// NodeSchema is the attribute schema of the node layer.
var NodeSchema = gpkg.Schema{
	{Name: ColumnID, Kind: gpkg.ValueInteger},
	{Name: ColumnElevation, Kind: gpkg.ValueReal},
}

// EdgeSchema returns the attribute schema of the edge layer: id, from and
// to columns followed by the network's own attributes.
func (n *Network) EdgeSchema() gpkg.Schema {
	s := gpkg.Schema{
		{Name: ColumnID, Kind: gpkg.ValueInteger},
		{Name: ColumnFrom, Kind: gpkg.ValueInteger},
		{Name: ColumnTo, Kind: gpkg.ValueInteger},
	}
	return append(s, n.Schema...)
}

func layerOptions(opts *gpkg.FlatGeobufOptions, name string) *gpkg.FlatGeobufOptions {
	o := gpkg.DefaultFlatGeobufOptions()
	if opts != nil {
		*o = *opts
	}
	if o.Name == "" {
		o.Name = name
	}
	return o
}

// WriteNodes validates the network and writes its nodes as a point layer.
func WriteNodes(w io.Writer, n *Network, opts *gpkg.FlatGeobufOptions) error {
	if err := n.Validate(); err != nil {
		return err
	}
	features := make([]gpkg.Feature, 0, len(n.Nodes))
	for _, node := range n.Nodes {
		pt, err := gpkg.NewPoint(gpkg.XY, gpkg.Coord{X: node.X, Y: node.Y})
		if err != nil {
			return err
		}
		attrs := []gpkg.Attribute{{Name: ColumnID, Value: node.ID}}
		if node.Elevation != nil {
			attrs = append(attrs, gpkg.Attribute{Name: ColumnElevation, Value: *node.Elevation})
		}
		features = append(features, gpkg.Feature{Geometry: pt, Attributes: attrs})
	}

	if err := gpkg.WriteFlatGeobuf(w, features, NodeSchema, layerOptions(opts, "nodes")); err != nil {
		return fmt.Errorf("write nodes: %w", err)
	}
	log.Info("wrote node layer", zap.Int("nodes", len(features)))
	return nil
}

// WriteEdges validates the network and writes its edges as a line layer.
func WriteEdges(w io.Writer, n *Network, opts *gpkg.FlatGeobufOptions) error {
	if err := n.Validate(); err != nil {
		return err
	}
	features := make([]gpkg.Feature, 0, len(n.Edges))
	for _, e := range n.Edges {
		attrs := make([]gpkg.Attribute, 0, len(e.Attributes)+3)
		attrs = append(attrs,
			gpkg.Attribute{Name: ColumnID, Value: e.ID},
			gpkg.Attribute{Name: ColumnFrom, Value: e.From},
			gpkg.Attribute{Name: ColumnTo, Value: e.To},
		)
		attrs = append(attrs, e.Attributes...)
		features = append(features, gpkg.Feature{Geometry: e.Geometry, Attributes: attrs})
	}

	if err := gpkg.WriteFlatGeobuf(w, features, n.EdgeSchema(), layerOptions(opts, "edges")); err != nil {
		return fmt.Errorf("write edges: %w", err)
	}
	log.Info("wrote edge layer", zap.Int("edges", len(features)), zap.Int("attributes", len(n.Schema)))
	return nil
}

// ReadEdges reads an edge layer written by WriteEdges. The returned
// schema holds the layer's columns other than id, from and to. FlatGeobuf
// stores features in spatial index order, so edges are returned sorted
// by id.
func ReadEdges(data []byte) ([]Edge, gpkg.Schema, error) {
	features, h, err := gpkg.ReadFlatGeobuf(data)
	if err != nil {
		return nil, nil, err
	}

	var schema gpkg.Schema
	for _, d := range h.Schema {
		switch d.Name {
		case ColumnID, ColumnFrom, ColumnTo:
		default:
			schema = append(schema, d)
		}
	}

	edges := make([]Edge, 0, len(features))
	for i, f := range features {
		e := Edge{Geometry: f.Geometry}
		for _, a := range f.Attributes {
			switch a.Name {
			case ColumnID:
				e.ID, _ = a.Value.(int64)
			case ColumnFrom:
				e.From, _ = a.Value.(int64)
			case ColumnTo:
				e.To, _ = a.Value.(int64)
			default:
				e.Attributes = append(e.Attributes, a)
			}
		}
		if e.Geometry.Kind() != gpkg.KindLineString {
			return nil, nil, invalid(fmt.Sprintf("feature %d", i), e.Geometry.Type(), gpkg.ErrKindMismatch)
		}
		edges = append(edges, e)
	}
	slices.SortStableFunc(edges, func(a, b Edge) int { return cmp.Compare(a.ID, b.ID) })
	return edges, schema, nil
}
