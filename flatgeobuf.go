package gpkg

import (
	"fmt"
	"io"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
)

// FlatGeobufOptions configures FlatGeobuf writing.
type FlatGeobufOptions struct {
	Name         string // Layer name
	Description  string // Layer description
	IncludeIndex bool   // Include spatial index (default: true)
	SRSId        int32  // EPSG code of the coordinates, 0 if unknown
}

// DefaultFlatGeobufOptions returns default options for writing FlatGeobuf files.
func DefaultFlatGeobufOptions() *FlatGeobufOptions {
	return &FlatGeobufOptions{IncludeIndex: true}
}

var fgbGeometryTypes = map[Kind]flattypes.GeometryType{
	KindPoint:              flattypes.GeometryTypePoint,
	KindLineString:         flattypes.GeometryTypeLineString,
	KindPolygon:            flattypes.GeometryTypePolygon,
	KindMultiPoint:         flattypes.GeometryTypeMultiPoint,
	KindMultiLineString:    flattypes.GeometryTypeMultiLineString,
	KindMultiPolygon:       flattypes.GeometryTypeMultiPolygon,
	KindGeometryCollection: flattypes.GeometryTypeGeometryCollection,
}

// WriteFlatGeobuf writes features as a FlatGeobuf layer. Coordinates are
// written in XY; Z and M values are not carried over. Features without
// any coordinate are skipped. Attribute values are checked against schema.
func WriteFlatGeobuf(w io.Writer, features []Feature, schema Schema, opts *FlatGeobufOptions) error {
	if opts == nil {
		opts = DefaultFlatGeobufOptions()
	}

	gen := &featureGenerator{schema: schema}
	for i, f := range features {
		if f.Geometry.IsNil() {
			return invalid(fmt.Sprintf("feature %d", i), "", ErrNilGeometry)
		}
		if f.Geometry.NumCoords() == 0 {
			continue
		}
		attrs, err := schema.Normalize(f.Attributes)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		gen.features = append(gen.features, Feature{Geometry: f.Geometry, Attributes: attrs})
	}
	if len(gen.features) == 0 {
		return ErrNoFeatures
	}

	builder := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(builder)
	header.SetGeometryType(layerGeometryType(gen.features))
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}
	if len(schema) > 0 {
		header.SetColumns(schemaColumns(schema, builder))
	}
	if opts.SRSId > 0 {
		crs := writer.NewCrs(builder)
		crs.SetOrg("EPSG")
		crs.SetCode(opts.SRSId)
		header.SetCrs(crs)
	}

	_, err := writer.NewWriter(header, opts.IncludeIndex, gen, nil).Write(w)
	return err
}

// layerGeometryType returns the common kind of all features, or Unknown.
func layerGeometryType(features []Feature) flattypes.GeometryType {
	kind := features[0].Geometry.Kind()
	for _, f := range features[1:] {
		if f.Geometry.Kind() != kind {
			return flattypes.GeometryTypeUnknown
		}
	}
	return fgbGeometryTypes[kind]
}

// featureGenerator feeds features to the FlatGeobuf writer one at a time.
type featureGenerator struct {
	features []Feature
	schema   Schema
	index    int
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.index >= len(g.features) {
		return nil
	}
	f := g.features[g.index]
	g.index++

	builder := flatbuffers.NewBuilder(1024)
	feature := writer.NewFeature(builder)
	feature.SetGeometry(toFGB(f.Geometry, builder))
	if props := encodeProperties(f.Attributes, g.schema); len(props) > 0 {
		feature.SetProperties(props)
	}
	return feature
}

// toFGB converts g into a FlatGeobuf geometry: flat xy pairs with ring
// or line end offsets, and nested parts for multi-polygons and collections.
func toFGB(g Geometry, builder *flatbuffers.Builder) *writer.Geometry {
	out := writer.NewGeometry(builder)
	out.SetType(fgbGeometryTypes[g.Kind()])

	switch g.Kind() {
	case KindPoint, KindLineString:
		out.SetXY(flatXY(g.coords))

	case KindPolygon:
		xy, ends := flatRings(g.rings)
		out.SetXY(xy)
		out.SetEnds(ends)

	case KindMultiPoint:
		var xy []float64
		for _, p := range g.parts {
			xy = append(xy, flatXY(p.coords)...)
		}
		out.SetXY(xy)

	case KindMultiLineString:
		lines := make([][]Coord, len(g.parts))
		for i, p := range g.parts {
			lines[i] = p.coords
		}
		xy, ends := flatRings(lines)
		out.SetXY(xy)
		out.SetEnds(ends)

	case KindMultiPolygon, KindGeometryCollection:
		parts := make([]writer.Geometry, 0, len(g.parts))
		for _, p := range g.parts {
			if p.NumCoords() == 0 {
				continue
			}
			parts = append(parts, *toFGB(p, builder))
		}
		out.SetParts(parts)
	}
	return out
}

func flatXY(coords []Coord) []float64 {
	xy := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		xy = append(xy, c.X, c.Y)
	}
	return xy
}

func flatRings(rings [][]Coord) ([]float64, []uint32) {
	var xy []float64
	ends := make([]uint32, 0, len(rings))
	for _, r := range rings {
		xy = append(xy, flatXY(r)...)
		ends = append(ends, uint32(len(xy)/2))
	}
	return xy, ends
}

// FlatGeobufHeader describes a FlatGeobuf layer.
type FlatGeobufHeader struct {
	Name          string
	Description   string
	GeometryType  string
	FeaturesCount uint64
	Envelope      [4]float64 // minX, minY, maxX, maxY
	SRSId         int32
	HasIndex      bool
	Schema        Schema
}

// FlatGeobufReader reads a FlatGeobuf layer held in memory.
type FlatGeobufReader struct {
	fgb *flatgeobuf.FlatGeoBuf
}

// NewFlatGeobufReader creates a reader over data.
func NewFlatGeobufReader(data []byte) (*FlatGeobufReader, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &FlatGeobufReader{fgb: fgb}, nil
}

// ReadFlatGeobuf reads every feature of an indexed FlatGeobuf layer.
// Features come back in spatial index order, not in the order they were
// written.
func ReadFlatGeobuf(data []byte) ([]Feature, *FlatGeobufHeader, error) {
	r, err := NewFlatGeobufReader(data)
	if err != nil {
		return nil, nil, err
	}
	features, err := r.Features()
	if err != nil {
		return nil, nil, err
	}
	return features, r.Header(), nil
}

// Header returns metadata about the layer.
func (r *FlatGeobufReader) Header() *FlatGeobufHeader {
	h := r.fgb.Header()
	if h == nil {
		return nil
	}
	out := &FlatGeobufHeader{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
	}
	if h.EnvelopeLength() >= 4 {
		out.Envelope = [4]float64{h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3)}
	}
	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		out.SRSId = int32(crs.Code())
	}
	for i := 0; i < h.ColumnsLength(); i++ {
		var col flattypes.Column
		if !h.Columns(&col, i) {
			continue
		}
		if kind, ok := valueKind(col.Type()); ok {
			out.Schema = append(out.Schema, AttributeDescriptor{Name: string(col.Name()), Kind: kind})
		}
	}
	return out
}

// Features reads every feature of the layer in spatial index order. The
// official reader only iterates through the spatial index, so layers
// written without one return ErrNoIndex.
func (r *FlatGeobufReader) Features() ([]Feature, error) {
	h := r.fgb.Header()
	if h.FeaturesCount() == 0 {
		return nil, nil
	}
	if h.IndexNodeSize() == 0 || h.EnvelopeLength() < 4 {
		return nil, ErrNoIndex
	}

	found, err := r.fgb.Search(h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3))
	if err != nil {
		return nil, err
	}
	features := make([]Feature, 0, len(found))
	for _, ff := range found {
		var geomObj flattypes.Geometry
		fg := ff.Geometry(&geomObj)
		if fg == nil {
			continue
		}
		t := fg.Type()
		if t == flattypes.GeometryTypeUnknown {
			t = h.GeometryType()
		}
		g, err := fromFGB(fg, t)
		if err != nil {
			return nil, err
		}
		f := Feature{Geometry: g}
		if n := ff.PropertiesLength(); n > 0 {
			props := make([]byte, n)
			for i := range props {
				props[i] = byte(ff.Properties(i))
			}
			if f.Attributes, err = decodeProperties(props, h); err != nil {
				return nil, err
			}
		}
		features = append(features, f)
	}
	return features, nil
}

func coordsFromXY(fg *flattypes.Geometry, start, end int) []Coord {
	if end <= start {
		return nil
	}
	coords := make([]Coord, 0, end-start)
	for i := start; i < end; i++ {
		coords = append(coords, Coord{X: fg.Xy(2 * i), Y: fg.Xy(2*i + 1)})
	}
	return coords
}

// splitEnds cuts the xy array of fg into sequences at its end offsets.
func splitEnds(fg *flattypes.Geometry) [][]Coord {
	n := fg.XyLength() / 2
	if fg.EndsLength() == 0 {
		if n == 0 {
			return nil
		}
		return [][]Coord{coordsFromXY(fg, 0, n)}
	}
	out := make([][]Coord, 0, fg.EndsLength())
	start := 0
	for i := 0; i < fg.EndsLength(); i++ {
		end := int(fg.Ends(i))
		if end > n {
			end = n
		}
		out = append(out, coordsFromXY(fg, start, end))
		start = end
	}
	return out
}

// fromFGB converts a FlatGeobuf geometry into an XY geometry. Parts carry
// their own type; the feature geometry may rely on the header type.
func fromFGB(fg *flattypes.Geometry, t flattypes.GeometryType) (Geometry, error) {
	n := fg.XyLength() / 2
	switch t {
	case flattypes.GeometryTypePoint:
		if n == 0 {
			return NewEmptyPoint(XY)
		}
		return NewPoint(XY, Coord{X: fg.Xy(0), Y: fg.Xy(1)})

	case flattypes.GeometryTypeLineString:
		return NewLineString(XY, coordsFromXY(fg, 0, n))

	case flattypes.GeometryTypePolygon:
		g := Geometry{code: NewTypeCode(KindPolygon, XY), rings: splitEnds(fg)}
		return g, nil

	case flattypes.GeometryTypeMultiPoint:
		g := Geometry{code: NewTypeCode(KindMultiPoint, XY)}
		for _, c := range coordsFromXY(fg, 0, n) {
			g.parts = append(g.parts, Geometry{code: NewTypeCode(KindPoint, XY), coords: []Coord{c}})
		}
		return g, nil

	case flattypes.GeometryTypeMultiLineString:
		g := Geometry{code: NewTypeCode(KindMultiLineString, XY)}
		for _, line := range splitEnds(fg) {
			g.parts = append(g.parts, Geometry{code: NewTypeCode(KindLineString, XY), coords: line})
		}
		return g, nil

	case flattypes.GeometryTypeMultiPolygon, flattypes.GeometryTypeGeometryCollection:
		kind := KindGeometryCollection
		if t == flattypes.GeometryTypeMultiPolygon {
			kind = KindMultiPolygon
		}
		g := Geometry{code: NewTypeCode(kind, XY)}
		for i := 0; i < fg.PartsLength(); i++ {
			var part flattypes.Geometry
			if !fg.Parts(&part, i) {
				continue
			}
			pt := part.Type()
			if kind == KindMultiPolygon {
				pt = flattypes.GeometryTypePolygon
			}
			child, err := fromFGB(&part, pt)
			if err != nil {
				return Geometry{}, err
			}
			g.parts = append(g.parts, child)
		}
		return g, nil
	}
	return Geometry{}, fmt.Errorf("%w: flatgeobuf geometry type %s", ErrUnknownType, flattypes.EnumNamesGeometryType[t])
}
