// Package network describes a routing network as nodes and edges and
// exports it as FlatGeobuf node and edge layers. Edge geometries come
// from decoded GeoPackage line strings.
package network

import (
	"errors"
	"fmt"
	"strconv"

	gpkg "github.com/tingold/gpkg-wkb"
)

var (
	ErrUnknownNode       = errors.New("network: edge references an unknown node")
	ErrDuplicateID       = errors.New("network: duplicate id")
	ErrTooFewCoords      = errors.New("network: edge needs at least two coordinates")
	ErrReservedAttribute = errors.New("network: attribute name is reserved")
)

// Column names used by the node and edge layers.
const (
	ColumnID        = "id"
	ColumnElevation = "elevation"
	ColumnFrom      = "from_node"
	ColumnTo        = "to_node"
)

// Node is a network vertex. Elevation is nil when the source geometry had
// no Z values.
type Node struct {
	ID        int64
	X, Y      float64
	Elevation *float64
}

// Edge connects two nodes along an XY line string.
type Edge struct {
	ID         int64
	From, To   int64
	Geometry   gpkg.Geometry
	Attributes []gpkg.Attribute
}

// Network is a set of nodes and edges whose edge attributes follow Schema.
type Network struct {
	Nodes  []Node
	Edges  []Edge
	Schema gpkg.Schema
}

// New returns an empty network with the given edge attribute schema.
func New(schema gpkg.Schema) *Network {
	return &Network{Schema: schema}
}

func invalid(field string, value any, err error) error {
	return &gpkg.ValidationError{Field: field, Value: fmt.Sprint(value), Err: err}
}

// NewEdgeFromGeometry builds an edge from a decoded line string of any
// dimension. The edge keeps the XY projection of g; the endpoint nodes are
// returned with their elevation taken from Z when g has one.
func NewEdgeFromGeometry(id, from, to int64, g gpkg.Geometry, attrs []gpkg.Attribute) (Edge, [2]Node, error) {
	if g.IsNil() {
		return Edge{}, [2]Node{}, invalid("edge "+strconv.FormatInt(id, 10), "", gpkg.ErrNilGeometry)
	}
	if g.Kind() != gpkg.KindLineString {
		return Edge{}, [2]Node{}, invalid("edge "+strconv.FormatInt(id, 10), g.Type(), gpkg.ErrKindMismatch)
	}
	coords := g.Coords()
	if len(coords) < 2 {
		return Edge{}, [2]Node{}, invalid("edge "+strconv.FormatInt(id, 10), len(coords), ErrTooFewCoords)
	}

	line, err := gpkg.NewLineString(gpkg.XY, coords)
	if err != nil {
		return Edge{}, [2]Node{}, err
	}
	hasZ := g.Dimension().HasZ()
	node := func(nid int64, c gpkg.Coord) Node {
		n := Node{ID: nid, X: c.X, Y: c.Y}
		if hasZ {
			z := c.Z
			n.Elevation = &z
		}
		return n
	}

	edge := Edge{
		ID:         id,
		From:       from,
		To:         to,
		Geometry:   line,
		Attributes: append([]gpkg.Attribute(nil), attrs...),
	}
	return edge, [2]Node{node(from, coords[0]), node(to, coords[len(coords)-1])}, nil
}

// AddEdgeFromGeometry adds an edge built by NewEdgeFromGeometry together
// with any endpoint node not yet in the network.
func (n *Network) AddEdgeFromGeometry(id, from, to int64, g gpkg.Geometry, attrs []gpkg.Attribute) (Edge, error) {
	edge, ends, err := NewEdgeFromGeometry(id, from, to, g, attrs)
	if err != nil {
		return Edge{}, err
	}
	for _, end := range ends {
		if n.node(end.ID) < 0 {
			n.Nodes = append(n.Nodes, end)
		}
	}
	n.Edges = append(n.Edges, edge)
	return edge, nil
}

func (n *Network) node(id int64) int {
	for i, node := range n.Nodes {
		if node.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks that ids are unique, that every edge is a line string
// between known nodes and that edge attributes match the schema.
func (n *Network) Validate() error {
	for _, d := range n.Schema {
		switch d.Name {
		case ColumnID, ColumnFrom, ColumnTo:
			return invalid("schema", d.Name, ErrReservedAttribute)
		}
	}

	nodes := make(map[int64]struct{}, len(n.Nodes))
	for _, node := range n.Nodes {
		if _, ok := nodes[node.ID]; ok {
			return invalid("node", node.ID, ErrDuplicateID)
		}
		nodes[node.ID] = struct{}{}
	}

	edges := make(map[int64]struct{}, len(n.Edges))
	for _, e := range n.Edges {
		field := "edge " + strconv.FormatInt(e.ID, 10)
		if _, ok := edges[e.ID]; ok {
			return invalid("edge", e.ID, ErrDuplicateID)
		}
		edges[e.ID] = struct{}{}

		if e.Geometry.IsNil() {
			return invalid(field, "", gpkg.ErrNilGeometry)
		}
		if e.Geometry.Kind() != gpkg.KindLineString {
			return invalid(field, e.Geometry.Type(), gpkg.ErrKindMismatch)
		}
		if _, ok := nodes[e.From]; !ok {
			return invalid(field+" from", e.From, ErrUnknownNode)
		}
		if _, ok := nodes[e.To]; !ok {
			return invalid(field+" to", e.To, ErrUnknownNode)
		}
		if _, err := n.Schema.Normalize(e.Attributes); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}
