package gpkg

import (
	"fmt"
	"strings"
)

// Kind is a simple-feature geometry code, independent of dimensionality.
type Kind uint32

// Simple-feature codes.
const (
	KindPoint              Kind = 1
	KindLineString         Kind = 2
	KindPolygon            Kind = 3
	KindMultiPoint         Kind = 4
	KindMultiLineString    Kind = 5
	KindMultiPolygon       Kind = 6
	KindGeometryCollection Kind = 7
)

var kindNames = map[Kind]string{
	KindPoint:              "Point",
	KindLineString:         "LineString",
	KindPolygon:            "Polygon",
	KindMultiPoint:         "MultiPoint",
	KindMultiLineString:    "MultiLineString",
	KindMultiPolygon:       "MultiPolygon",
	KindGeometryCollection: "GeometryCollection",
}

// Valid reports whether k is a known simple-feature code.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Element returns the kind of the parts held by a homogeneous collection.
// It returns false for kinds that are not Multi* collections.
func (k Kind) Element() (Kind, bool) {
	switch k {
	case KindMultiPoint:
		return KindPoint, true
	case KindMultiLineString:
		return KindLineString, true
	case KindMultiPolygon:
		return KindPolygon, true
	}
	return 0, false
}

// Dimension is the dimensionality base added to a simple-feature code.
// It selects which of the Z and M axes a geometry carries.
type Dimension uint32

// Dimensionality bases.
const (
	XY   Dimension = 0
	XYZ  Dimension = 1000
	XYM  Dimension = 2000
	XYZM Dimension = 3000
)

// Dimensions lists the four variants in code order.
var Dimensions = []Dimension{XY, XYZ, XYM, XYZM}

// Kinds lists the seven simple-feature kinds in code order.
var Kinds = []Kind{
	KindPoint, KindLineString, KindPolygon,
	KindMultiPoint, KindMultiLineString, KindMultiPolygon,
	KindGeometryCollection,
}

func (d Dimension) Valid() bool {
	return d == XY || d == XYZ || d == XYM || d == XYZM
}

// HasZ reports whether coordinates carry a z value.
func (d Dimension) HasZ() bool { return d == XYZ || d == XYZM }

// HasM reports whether coordinates carry an m value.
func (d Dimension) HasM() bool { return d == XYM || d == XYZM }

// Stride is the number of float64 values per coordinate.
func (d Dimension) Stride() int {
	n := 2
	if d.HasZ() {
		n++
	}
	if d.HasM() {
		n++
	}
	return n
}

func (d Dimension) String() string {
	switch d {
	case XY:
		return "XY"
	case XYZ:
		return "XYZ"
	case XYM:
		return "XYM"
	case XYZM:
		return "XYZM"
	}
	return fmt.Sprintf("Dimension(%d)", uint32(d))
}

// suffix is the conventional type-name suffix, e.g. "Z" in "PointZ".
func (d Dimension) suffix() string {
	switch d {
	case XYZ:
		return "Z"
	case XYM:
		return "M"
	case XYZM:
		return "ZM"
	}
	return ""
}

// TypeCode is a WKB geometry type code: dimensionality base + simple-feature code.
type TypeCode uint32

// NewTypeCode combines a kind and a dimension into a type code.
func NewTypeCode(k Kind, d Dimension) TypeCode {
	return TypeCode(uint32(d) + uint32(k))
}

// Kind returns the simple-feature part of the code.
func (c TypeCode) Kind() Kind { return Kind(uint32(c) % 1000) }

// Dimension returns the dimensionality base of the code.
func (c TypeCode) Dimension() Dimension { return Dimension(uint32(c) - uint32(c)%1000) }

// Valid reports whether both parts of the code are known.
func (c TypeCode) Valid() bool {
	return c.Kind().Valid() && c.Dimension().Valid()
}

// String returns names such as "Point", "LineStringZ" or "MultiPolygonZM".
func (c TypeCode) String() string {
	if !c.Valid() {
		return fmt.Sprintf("TypeCode(%d)", uint32(c))
	}
	return c.Kind().String() + c.Dimension().suffix()
}

// ParseTypeCode validates a raw code read from the wire.
func ParseTypeCode(raw uint32) (TypeCode, error) {
	c := TypeCode(raw)
	if !c.Valid() {
		return 0, &FormatError{Op: "parse type code", Actual: raw, Err: ErrUnknownType}
	}
	return c, nil
}

// TypeCodes returns all 28 valid type codes, grouped by dimension.
func TypeCodes() []TypeCode {
	codes := make([]TypeCode, 0, len(Kinds)*len(Dimensions))
	for _, d := range Dimensions {
		for _, k := range Kinds {
			codes = append(codes, NewTypeCode(k, d))
		}
	}
	return codes
}

// KindByName looks up a kind by its GeoPackage geometry_type_name,
// e.g. "POINT" or "MultiPolygon". Matching is case-insensitive.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, true
		}
	}
	if strings.EqualFold(name, "GEOMCOLLECTION") {
		return KindGeometryCollection, true
	}
	return 0, false
}
