package gpkg

import (
	"fmt"
	"math"
)

// Coord is a single position. X and Y are always meaningful; Z and M are
// only meaningful when the owning geometry's dimension declares them and
// are kept at zero otherwise.
type Coord struct {
	X, Y, Z, M float64
}

// normalize zeroes the axes d does not declare.
func (c Coord) normalize(d Dimension) Coord {
	if !d.HasZ() {
		c.Z = 0
	}
	if !d.HasM() {
		c.M = 0
	}
	return c
}

// isNaN reports whether every axis declared by d is NaN, which is how an
// empty point is written.
func (c Coord) isNaN(d Dimension) bool {
	if !math.IsNaN(c.X) || !math.IsNaN(c.Y) {
		return false
	}
	if d.HasZ() && !math.IsNaN(c.Z) {
		return false
	}
	if d.HasM() && !math.IsNaN(c.M) {
		return false
	}
	return true
}

func (c Coord) equal(o Coord) bool {
	return sameFloat(c.X, o.X) && sameFloat(c.Y, o.Y) && sameFloat(c.Z, o.Z) && sameFloat(c.M, o.M)
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// LinearRing is a closed sequence of coordinates used as a polygon ring.
type LinearRing []Coord

// IsClosed reports whether the first and last coordinates coincide.
// The codec does not require closure; this is a helper for callers.
func (r LinearRing) IsClosed() bool {
	if len(r) == 0 {
		return true
	}
	return r[0].equal(r[len(r)-1])
}

// Geometry is an immutable geometry value of one of the 28 kinds. The
// payload depends on the kind: a point holds at most one coordinate, a
// line string a coordinate sequence, a polygon a list of rings and the
// collection kinds a list of nested geometries.
//
// The zero Geometry is not a valid geometry; see IsNil.
type Geometry struct {
	code   TypeCode
	coords []Coord
	rings  [][]Coord
	parts  []Geometry
}

// Must is a helper that wraps a call returning (Geometry, error) and
// panics if the error is non-nil.
func Must(g Geometry, err error) Geometry {
	if err != nil {
		panic(err)
	}
	return g
}

func checkDimension(d Dimension) error {
	if !d.Valid() {
		return invalid("dimension", d.String(), ErrDimensionMismatch)
	}
	return nil
}

// NewPoint returns a point. A coordinate whose declared axes are all NaN
// produces the empty point.
func NewPoint(d Dimension, c Coord) (Geometry, error) {
	if err := checkDimension(d); err != nil {
		return Geometry{}, err
	}
	g := Geometry{code: NewTypeCode(KindPoint, d)}
	if !c.isNaN(d) {
		g.coords = []Coord{c.normalize(d)}
	}
	return g, nil
}

// NewEmptyPoint returns a point without a coordinate.
func NewEmptyPoint(d Dimension) (Geometry, error) {
	if err := checkDimension(d); err != nil {
		return Geometry{}, err
	}
	return Geometry{code: NewTypeCode(KindPoint, d)}, nil
}

// NewLineString returns a line string over a copy of coords.
func NewLineString(d Dimension, coords []Coord) (Geometry, error) {
	if err := checkDimension(d); err != nil {
		return Geometry{}, err
	}
	return Geometry{code: NewTypeCode(KindLineString, d), coords: copyCoords(coords, d)}, nil
}

// NewPolygon returns a polygon. The first ring is the exterior, the rest
// are holes. Ring closure and orientation are not checked.
func NewPolygon(d Dimension, rings ...LinearRing) (Geometry, error) {
	if err := checkDimension(d); err != nil {
		return Geometry{}, err
	}
	g := Geometry{code: NewTypeCode(KindPolygon, d)}
	if len(rings) > 0 {
		g.rings = make([][]Coord, len(rings))
		for i, r := range rings {
			g.rings[i] = copyCoords(r, d)
		}
	}
	return g, nil
}

// NewMultiPoint returns a collection of points sharing dimension d.
func NewMultiPoint(d Dimension, points ...Geometry) (Geometry, error) {
	return newCollection(KindMultiPoint, d, points)
}

// NewMultiLineString returns a collection of line strings sharing dimension d.
func NewMultiLineString(d Dimension, lines ...Geometry) (Geometry, error) {
	return newCollection(KindMultiLineString, d, lines)
}

// NewMultiPolygon returns a collection of polygons sharing dimension d.
func NewMultiPolygon(d Dimension, polygons ...Geometry) (Geometry, error) {
	return newCollection(KindMultiPolygon, d, polygons)
}

// NewGeometryCollection returns a collection of arbitrary geometries
// sharing dimension d.
func NewGeometryCollection(d Dimension, parts ...Geometry) (Geometry, error) {
	return newCollection(KindGeometryCollection, d, parts)
}

func newCollection(k Kind, d Dimension, parts []Geometry) (Geometry, error) {
	if err := checkDimension(d); err != nil {
		return Geometry{}, err
	}
	elem, homogeneous := k.Element()
	for i, p := range parts {
		field := fmt.Sprintf("%s part %d", k, i)
		if p.IsNil() {
			return Geometry{}, invalid(field, "", ErrNilGeometry)
		}
		if p.Dimension() != d {
			return Geometry{}, invalid(field, p.Type().String(), ErrDimensionMismatch)
		}
		if homogeneous && p.Kind() != elem {
			return Geometry{}, invalid(field, p.Type().String(), ErrKindMismatch)
		}
	}
	g := Geometry{code: NewTypeCode(k, d)}
	if len(parts) > 0 {
		g.parts = append([]Geometry(nil), parts...)
	}
	return g, nil
}

func copyCoords(coords []Coord, d Dimension) []Coord {
	if len(coords) == 0 {
		return nil
	}
	out := make([]Coord, len(coords))
	for i, c := range coords {
		out[i] = c.normalize(d)
	}
	return out
}

// IsNil reports whether g is the zero Geometry.
func (g Geometry) IsNil() bool { return g.code == 0 }

// Type returns the WKB type code of g.
func (g Geometry) Type() TypeCode { return g.code }

// Kind returns the simple-feature kind of g.
func (g Geometry) Kind() Kind { return g.code.Kind() }

// Dimension returns the dimensionality of g.
func (g Geometry) Dimension() Dimension { return g.code.Dimension() }

// IsEmpty reports whether g contains no coordinates at its top level:
// an empty point, a line string without coordinates, a polygon without
// rings or a collection without parts.
func (g Geometry) IsEmpty() bool {
	switch g.Kind() {
	case KindPoint, KindLineString:
		return len(g.coords) == 0
	case KindPolygon:
		return len(g.rings) == 0
	}
	return len(g.parts) == 0
}

// Coord returns the coordinate of a point. ok is false for empty points
// and for every other kind.
func (g Geometry) Coord() (c Coord, ok bool) {
	if g.Kind() != KindPoint || len(g.coords) == 0 {
		return Coord{}, false
	}
	return g.coords[0], true
}

// Coords returns a copy of the coordinates of a point or line string.
func (g Geometry) Coords() []Coord {
	return append([]Coord(nil), g.coords...)
}

// Rings returns a copy of the rings of a polygon.
func (g Geometry) Rings() []LinearRing {
	if len(g.rings) == 0 {
		return nil
	}
	out := make([]LinearRing, len(g.rings))
	for i, r := range g.rings {
		out[i] = append(LinearRing(nil), r...)
	}
	return out
}

// NumParts returns the number of parts of a collection kind.
func (g Geometry) NumParts() int { return len(g.parts) }

// Part returns the i-th part of a collection kind.
func (g Geometry) Part(i int) Geometry { return g.parts[i] }

// Parts returns a copy of the part list of a collection kind.
func (g Geometry) Parts() []Geometry {
	return append([]Geometry(nil), g.parts...)
}

// NumCoords returns the number of coordinates in g, recursively.
func (g Geometry) NumCoords() int {
	n := 0
	g.eachCoord(func(Coord) { n++ })
	return n
}

// eachCoord calls fn for every coordinate in g, depth first.
func (g Geometry) eachCoord(fn func(Coord)) {
	for _, c := range g.coords {
		fn(c)
	}
	for _, r := range g.rings {
		for _, c := range r {
			fn(c)
		}
	}
	for _, p := range g.parts {
		p.eachCoord(fn)
	}
}

// Equal reports whether g and o have the same type and the same
// coordinates, field for field. NaN compares equal to NaN.
func (g Geometry) Equal(o Geometry) bool {
	if g.code != o.code {
		return false
	}
	if !coordsEqual(g.coords, o.coords) || len(g.rings) != len(o.rings) || len(g.parts) != len(o.parts) {
		return false
	}
	for i := range g.rings {
		if !coordsEqual(g.rings[i], o.rings[i]) {
			return false
		}
	}
	for i := range g.parts {
		if !g.parts[i].Equal(o.parts[i]) {
			return false
		}
	}
	return true
}

func coordsEqual(a, b []Coord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

func (g Geometry) String() string {
	if g.IsNil() {
		return "<nil geometry>"
	}
	switch g.Kind() {
	case KindPoint:
		if c, ok := g.Coord(); ok {
			return fmt.Sprintf("%s(%v %v)", g.code, c.X, c.Y)
		}
		return g.code.String() + " EMPTY"
	case KindLineString:
		return fmt.Sprintf("%s[%d]", g.code, len(g.coords))
	case KindPolygon:
		return fmt.Sprintf("%s[%d rings]", g.code, len(g.rings))
	}
	return fmt.Sprintf("%s[%d parts]", g.code, len(g.parts))
}
