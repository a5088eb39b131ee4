package gpkg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Encoder writes WKB geometries to an output stream using one byte order
// for every field it writes.
type Encoder struct {
	w     io.Writer
	order binary.ByteOrder
	flag  byte
	buf   [8]byte
	err   error
}

// NewEncoder returns an encoder writing to w. A nil order selects
// little-endian. An order that is neither little- nor big-endian makes
// every Encode fail with ErrByteOrder.
func NewEncoder(w io.Writer, order binary.ByteOrder) *Encoder {
	if order == nil {
		order = binary.LittleEndian
	}
	e := &Encoder{w: w, order: order}
	e.flag, e.err = orderFlag(order)
	return e
}

// Marshal returns the WKB encoding of g.
func Marshal(g Geometry, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(Size(g))
	if err := NewEncoder(&buf, order).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Size returns the number of bytes Marshal produces for g.
func Size(g Geometry) int {
	if g.IsNil() {
		return 0
	}
	stride := g.Dimension().Stride() * 8
	n := 1 + 4
	switch g.Kind() {
	case KindPoint:
		return n + stride
	case KindLineString:
		return n + 4 + len(g.coords)*stride
	case KindPolygon:
		n += 4
		for _, r := range g.rings {
			n += 4 + len(r)*stride
		}
		return n
	}
	n += 4
	for _, p := range g.parts {
		n += Size(p)
	}
	return n
}

// Encode writes g, including nested geometries, as WKB.
func (e *Encoder) Encode(g Geometry) error {
	if g.IsNil() {
		return invalid("geometry", "", ErrNilGeometry)
	}
	e.geometry(g)
	return e.err
}

func (e *Encoder) geometry(g Geometry) {
	e.header(g.code)
	d := g.Dimension()
	switch g.Kind() {
	case KindPoint:
		if c, ok := g.Coord(); ok {
			e.coord(c, d)
		} else {
			nan := math.NaN()
			e.coord(Coord{X: nan, Y: nan, Z: nan, M: nan}, d)
		}
	case KindLineString:
		e.coords(g.coords, d)
	case KindPolygon:
		e.uint32(uint32(len(g.rings)))
		for _, r := range g.rings {
			e.coords(r, d)
		}
	default:
		e.uint32(uint32(len(g.parts)))
		for _, p := range g.parts {
			e.geometry(p)
		}
	}
}

func (e *Encoder) header(code TypeCode) {
	e.write([]byte{e.flag})
	e.uint32(uint32(code))
}

// orderFlag returns the WKB byte order marker: 0 big-endian, 1 little-endian.
// The marker is derived from the bytes order writes, so aliases such as
// binary.NativeEndian map to the matching marker.
func orderFlag(order binary.ByteOrder) (byte, error) {
	const marker uint64 = 0x0102030405060708
	var b [8]byte
	order.PutUint64(b[:], marker)
	switch marker {
	case binary.LittleEndian.Uint64(b[:]):
		return 1, nil
	case binary.BigEndian.Uint64(b[:]):
		return 0, nil
	}
	return 0, invalid("byte order", fmt.Sprintf("%T", order), ErrByteOrder)
}

func (e *Encoder) coords(cs []Coord, d Dimension) {
	e.uint32(uint32(len(cs)))
	for _, c := range cs {
		e.coord(c, d)
	}
}

func (e *Encoder) coord(c Coord, d Dimension) {
	e.float64(c.X)
	e.float64(c.Y)
	if d.HasZ() {
		e.float64(c.Z)
	}
	if d.HasM() {
		e.float64(c.M)
	}
}

func (e *Encoder) uint32(v uint32) {
	e.order.PutUint32(e.buf[:4], v)
	e.write(e.buf[:4])
}

func (e *Encoder) float64(v float64) {
	e.order.PutUint64(e.buf[:8], math.Float64bits(v))
	e.write(e.buf[:8])
}

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}
