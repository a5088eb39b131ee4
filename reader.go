package gpkg

import (
	"encoding/binary"
	"math"
)

// Cursor is a read position over a byte buffer. Reads advance the
// position in place, so a Cursor must not be shared between goroutines.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Offset returns the current read position.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

func (c *Cursor) next(n int, op string) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, &FormatError{Op: op, Offset: c.off, Err: ErrTruncated}
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *Cursor) byteOrder(op string) (binary.ByteOrder, error) {
	start := c.off
	b, err := c.next(1, op)
	if err != nil {
		return nil, err
	}
	switch b[0] {
	case 0:
		return binary.BigEndian, nil
	case 1:
		return binary.LittleEndian, nil
	}
	return nil, &FormatError{Op: op, Offset: start, Actual: uint32(b[0]), Err: ErrByteOrder}
}

func (c *Cursor) uint32(order binary.ByteOrder, op string) (uint32, error) {
	b, err := c.next(4, op)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

func (c *Cursor) float64(order binary.ByteOrder, op string) (float64, error) {
	b, err := c.next(8, op)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(order.Uint64(b)), nil
}

// count reads an element count and rejects counts that the rest of the
// buffer cannot hold, given that every element needs at least minSize bytes.
func (c *Cursor) count(order binary.ByteOrder, minSize int, op string) (int, error) {
	start := c.off
	n, err := c.uint32(order, op)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(c.Remaining()) {
		return 0, &FormatError{Op: op, Offset: start, Err: ErrTruncated}
	}
	return int(n), nil
}

// PeekType returns the type code of the geometry at the cursor without
// advancing it. Unknown codes are reported as a FormatError.
func (c *Cursor) PeekType() (TypeCode, error) {
	save := c.off
	defer func() { c.off = save }()

	order, err := c.byteOrder("peek type")
	if err != nil {
		return 0, err
	}
	start := c.off
	raw, err := c.uint32(order, "peek type")
	if err != nil {
		return 0, err
	}
	code, err := ParseTypeCode(raw)
	if err != nil {
		err.(*FormatError).Offset = start
		return 0, err
	}
	return code, nil
}

// header reads the byte order and type code of a geometry and checks the
// code against the one the caller is prepared to read.
func (c *Cursor) header(expected TypeCode, op string) (binary.ByteOrder, error) {
	order, err := c.byteOrder(op)
	if err != nil {
		return nil, err
	}
	start := c.off
	raw, err := c.uint32(order, op)
	if err != nil {
		return nil, err
	}
	if TypeCode(raw) != expected {
		return nil, &FormatError{Op: op, Offset: start, Expected: uint32(expected), Actual: raw, Err: ErrUnexpectedType}
	}
	return order, nil
}

// Unmarshal decodes exactly one WKB geometry from b.
func Unmarshal(b []byte) (Geometry, error) {
	c := NewCursor(b)
	g, err := Read(c)
	if err != nil {
		return Geometry{}, err
	}
	if c.Remaining() > 0 {
		return Geometry{}, &FormatError{Op: "unmarshal", Offset: c.off, Err: ErrTrailingData}
	}
	return g, nil
}

// Read decodes the geometry at the cursor, whatever its type.
func Read(c *Cursor) (Geometry, error) {
	code, err := c.PeekType()
	if err != nil {
		return Geometry{}, err
	}
	return ReadAs(c, code)
}

// ReadAs decodes a geometry whose header must carry the type code
// expected; any other code is a FormatError.
func ReadAs(c *Cursor, expected TypeCode) (Geometry, error) {
	if !expected.Valid() {
		return Geometry{}, &FormatError{Op: "read", Offset: c.off, Expected: uint32(expected), Err: ErrUnknownType}
	}
	return readers[expected.Kind()](c, expected)
}

type readFunc func(c *Cursor, expected TypeCode) (Geometry, error)

var readers map[Kind]readFunc

func init() {
	readers = map[Kind]readFunc{
		KindPoint:              readPoint,
		KindLineString:         readLineString,
		KindPolygon:            readPolygon,
		KindMultiPoint:         readMulti,
		KindMultiLineString:    readMulti,
		KindMultiPolygon:       readMulti,
		KindGeometryCollection: readCollection,
	}
}

func readCoord(c *Cursor, order binary.ByteOrder, d Dimension, op string) (Coord, error) {
	var (
		co  Coord
		err error
	)
	if co.X, err = c.float64(order, op); err != nil {
		return co, err
	}
	if co.Y, err = c.float64(order, op); err != nil {
		return co, err
	}
	if d.HasZ() {
		if co.Z, err = c.float64(order, op); err != nil {
			return co, err
		}
	}
	if d.HasM() {
		if co.M, err = c.float64(order, op); err != nil {
			return co, err
		}
	}
	return co, nil
}

func readCoords(c *Cursor, order binary.ByteOrder, d Dimension, op string) ([]Coord, error) {
	n, err := c.count(order, d.Stride()*8, op)
	if err != nil || n == 0 {
		return nil, err
	}
	coords := make([]Coord, n)
	for i := range coords {
		if coords[i], err = readCoord(c, order, d, op); err != nil {
			return nil, err
		}
	}
	return coords, nil
}

func readPoint(c *Cursor, expected TypeCode) (Geometry, error) {
	const op = "read point"
	order, err := c.header(expected, op)
	if err != nil {
		return Geometry{}, err
	}
	d := expected.Dimension()
	co, err := readCoord(c, order, d, op)
	if err != nil {
		return Geometry{}, err
	}
	g := Geometry{code: expected}
	if !co.isNaN(d) {
		g.coords = []Coord{co}
	}
	return g, nil
}

func readLineString(c *Cursor, expected TypeCode) (Geometry, error) {
	const op = "read line string"
	order, err := c.header(expected, op)
	if err != nil {
		return Geometry{}, err
	}
	coords, err := readCoords(c, order, expected.Dimension(), op)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{code: expected, coords: coords}, nil
}

func readPolygon(c *Cursor, expected TypeCode) (Geometry, error) {
	const op = "read polygon"
	order, err := c.header(expected, op)
	if err != nil {
		return Geometry{}, err
	}
	n, err := c.count(order, 4, op)
	if err != nil {
		return Geometry{}, err
	}
	g := Geometry{code: expected}
	if n > 0 {
		g.rings = make([][]Coord, n)
	}
	for i := range g.rings {
		if g.rings[i], err = readCoords(c, order, expected.Dimension(), op); err != nil {
			return Geometry{}, err
		}
	}
	return g, nil
}

// minGeometrySize is the smallest possible nested geometry: a header
// followed by an empty count.
const minGeometrySize = 1 + 4 + 4

func readMulti(c *Cursor, expected TypeCode) (Geometry, error) {
	op := "read " + expected.Kind().String()
	order, err := c.header(expected, op)
	if err != nil {
		return Geometry{}, err
	}
	n, err := c.count(order, minGeometrySize, op)
	if err != nil {
		return Geometry{}, err
	}
	elem, _ := expected.Kind().Element()
	partCode := NewTypeCode(elem, expected.Dimension())
	read := readers[elem]

	g := Geometry{code: expected}
	if n > 0 {
		g.parts = make([]Geometry, n)
	}
	for i := range g.parts {
		if g.parts[i], err = read(c, partCode); err != nil {
			return Geometry{}, err
		}
	}
	return g, nil
}

func readCollection(c *Cursor, expected TypeCode) (Geometry, error) {
	const op = "read geometry collection"
	order, err := c.header(expected, op)
	if err != nil {
		return Geometry{}, err
	}
	n, err := c.count(order, minGeometrySize, op)
	if err != nil {
		return Geometry{}, err
	}
	g := Geometry{code: expected}
	if n > 0 {
		g.parts = make([]Geometry, n)
	}
	for i := range g.parts {
		code, err := c.PeekType()
		if err != nil {
			return Geometry{}, err
		}
		if code.Dimension() != expected.Dimension() {
			want := NewTypeCode(code.Kind(), expected.Dimension())
			return Geometry{}, &FormatError{Op: op, Offset: c.off + 1, Expected: uint32(want), Actual: uint32(code), Err: ErrUnexpectedType}
		}
		if g.parts[i], err = ReadAs(c, code); err != nil {
			return Geometry{}, err
		}
	}
	return g, nil
}
