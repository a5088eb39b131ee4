package gpkg

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EnvelopeIndicator selects which axes an envelope carries. It occupies
// three bits of the GeoPackage blob flags; only 0 through 4 are defined.
type EnvelopeIndicator uint8

const (
	EnvelopeNone EnvelopeIndicator = 0 // no envelope
	EnvelopeXY   EnvelopeIndicator = 1 // minx, maxx, miny, maxy
	EnvelopeXYZ  EnvelopeIndicator = 2 // + minz, maxz
	EnvelopeXYM  EnvelopeIndicator = 3 // + minm, maxm
	EnvelopeXYZM EnvelopeIndicator = 4 // + minz, maxz, minm, maxm
)

// IndicatorFor returns the indicator matching the axes declared by d.
func IndicatorFor(d Dimension) EnvelopeIndicator {
	switch d {
	case XYZ:
		return EnvelopeXYZ
	case XYM:
		return EnvelopeXYM
	case XYZM:
		return EnvelopeXYZM
	}
	return EnvelopeXY
}

// Valid reports whether i is one of the defined indicators.
func (i EnvelopeIndicator) Valid() bool { return i <= EnvelopeXYZM }

func (i EnvelopeIndicator) HasZ() bool { return i == EnvelopeXYZ || i == EnvelopeXYZM }

func (i EnvelopeIndicator) HasM() bool { return i == EnvelopeXYM || i == EnvelopeXYZM }

// Len returns the number of float64 values in the serialized envelope.
func (i EnvelopeIndicator) Len() int {
	switch i {
	case EnvelopeXY:
		return 4
	case EnvelopeXYZ, EnvelopeXYM:
		return 6
	case EnvelopeXYZM:
		return 8
	}
	return 0
}

// Size returns the number of bytes in the serialized envelope.
func (i EnvelopeIndicator) Size() int { return i.Len() * 8 }

func (i EnvelopeIndicator) String() string {
	switch i {
	case EnvelopeNone:
		return "none"
	case EnvelopeXY:
		return "xy"
	case EnvelopeXYZ:
		return "xyz"
	case EnvelopeXYM:
		return "xym"
	case EnvelopeXYZM:
		return "xyzm"
	}
	return fmt.Sprintf("EnvelopeIndicator(%d)", uint8(i))
}

// Envelope is the bounding box of a geometry. Only the axes selected by
// Indicator are meaningful. Envelopes are derived from geometries with
// Geometry.Envelope or decoded from a blob; they are not built by hand.
type Envelope struct {
	Indicator  EnvelopeIndicator
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
	MinM, MaxM float64
}

// Envelope folds every coordinate of g into per-axis bounds. The
// indicator follows g's dimension; a geometry without any coordinate
// has no envelope. NaN ordinates do not widen an axis, and an axis with
// no other value gets NaN bounds.
func (g Geometry) Envelope() Envelope {
	if g.IsNil() {
		return Envelope{}
	}
	inf := math.Inf(1)
	e := Envelope{
		Indicator: IndicatorFor(g.Dimension()),
		MinX:      inf, MaxX: -inf,
		MinY: inf, MaxY: -inf,
		MinZ: inf, MaxZ: -inf,
		MinM: inf, MaxM: -inf,
	}
	n := 0
	g.eachCoord(func(c Coord) {
		n++
		e.MinX, e.MaxX = fold(e.MinX, e.MaxX, c.X)
		e.MinY, e.MaxY = fold(e.MinY, e.MaxY, c.Y)
		e.MinZ, e.MaxZ = fold(e.MinZ, e.MaxZ, c.Z)
		e.MinM, e.MaxM = fold(e.MinM, e.MaxM, c.M)
	})
	if n == 0 {
		return Envelope{}
	}
	e.MinX, e.MaxX = unbounded(e.MinX, e.MaxX)
	e.MinY, e.MaxY = unbounded(e.MinY, e.MaxY)
	e.MinZ, e.MaxZ = unbounded(e.MinZ, e.MaxZ)
	e.MinM, e.MaxM = unbounded(e.MinM, e.MaxM)
	if !e.Indicator.HasZ() {
		e.MinZ, e.MaxZ = 0, 0
	}
	if !e.Indicator.HasM() {
		e.MinM, e.MaxM = 0, 0
	}
	return e
}

// fold widens [lo, hi] to cover v. NaN ordinates are skipped.
func fold(lo, hi, v float64) (float64, float64) {
	if math.IsNaN(v) {
		return lo, hi
	}
	return math.Min(lo, v), math.Max(hi, v)
}

// unbounded maps an axis that saw only NaN ordinates to NaN bounds.
func unbounded(lo, hi float64) (float64, float64) {
	if lo > hi {
		return math.NaN(), math.NaN()
	}
	return lo, hi
}

// IsEmpty reports whether the envelope carries no axes.
func (e Envelope) IsEmpty() bool { return e.Indicator == EnvelopeNone }

// Values returns the serialized doubles: x(min,max), y(min,max), then
// z(min,max) and m(min,max) when present.
func (e Envelope) Values() []float64 {
	if e.IsEmpty() {
		return nil
	}
	v := make([]float64, 0, e.Indicator.Len())
	v = append(v, e.MinX, e.MaxX, e.MinY, e.MaxY)
	if e.Indicator.HasZ() {
		v = append(v, e.MinZ, e.MaxZ)
	}
	if e.Indicator.HasM() {
		v = append(v, e.MinM, e.MaxM)
	}
	return v
}

// AppendBinary appends the serialized envelope to b.
func (e Envelope) AppendBinary(b []byte, order binary.ByteOrder) []byte {
	var buf [8]byte
	for _, v := range e.Values() {
		order.PutUint64(buf[:], math.Float64bits(v))
		b = append(b, buf[:]...)
	}
	return b
}

// ReadEnvelope decodes an envelope of the given indicator at the cursor.
func ReadEnvelope(c *Cursor, order binary.ByteOrder, i EnvelopeIndicator) (Envelope, error) {
	const op = "read envelope"
	if !i.Valid() {
		return Envelope{}, &FormatError{Op: op, Offset: c.off, Actual: uint32(i), Err: ErrEnvelopeIndicator}
	}
	e := Envelope{Indicator: i}
	if i == EnvelopeNone {
		return e, nil
	}
	axes := []*float64{&e.MinX, &e.MaxX, &e.MinY, &e.MaxY}
	if i.HasZ() {
		axes = append(axes, &e.MinZ, &e.MaxZ)
	}
	if i.HasM() {
		axes = append(axes, &e.MinM, &e.MaxM)
	}
	for _, p := range axes {
		v, err := c.float64(order, op)
		if err != nil {
			return Envelope{}, err
		}
		*p = v
	}
	return e, nil
}
