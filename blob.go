package gpkg

import (
	"encoding/binary"
)

// GeoPackage geometry blob layout:
//
//	magic    2 bytes  "GP"
//	version  1 byte   0
//	flags    1 byte   0b00XYEEEB
//	srs_id   4 bytes  int32
//	envelope 0, 32, 48 or 64 bytes
//	geometry WKB
//
// X marks an extended (non-standard) geometry, Y an empty geometry, EEE is
// the envelope indicator and B the byte order of srs_id and the envelope.
const (
	blobMagic0  = 'G'
	blobMagic1  = 'P'
	blobVersion = 0

	flagByteOrder = 0x01
	flagEnvelope  = 0x0e
	flagEmpty     = 0x10
	flagExtended  = 0x20

	blobFixedSize = 8
)

// BinaryHeader is the header of a GeoPackage geometry blob.
type BinaryHeader struct {
	version  uint8
	flags    uint8
	srsID    int32
	envelope Envelope
}

// NewBinaryHeader decodes the blob header at the start of b.
func NewBinaryHeader(b []byte) (*BinaryHeader, error) {
	const op = "read blob header"
	c := NewCursor(b)
	fixed, err := c.next(4, op)
	if err != nil {
		return nil, err
	}
	if fixed[0] != blobMagic0 || fixed[1] != blobMagic1 {
		return nil, &FormatError{Op: op, Offset: 0, Err: ErrBlobMagic}
	}
	if fixed[2] != blobVersion {
		return nil, &FormatError{Op: op, Offset: 2, Actual: uint32(fixed[2]), Err: ErrBlobMagic}
	}
	h := &BinaryHeader{version: fixed[2], flags: fixed[3]}
	if h.flags&0xc0 != 0 {
		return nil, &FormatError{Op: op, Offset: 3, Actual: uint32(h.flags), Err: ErrBlobMagic}
	}

	order := h.ByteOrder()
	srs, err := c.uint32(order, op)
	if err != nil {
		return nil, err
	}
	h.srsID = int32(srs)

	indicator := EnvelopeIndicator((h.flags & flagEnvelope) >> 1)
	if !indicator.Valid() {
		return nil, &FormatError{Op: op, Offset: 3, Actual: uint32(indicator), Err: ErrEnvelopeIndicator}
	}
	if h.envelope, err = ReadEnvelope(c, order, indicator); err != nil {
		return nil, err
	}
	return h, nil
}

// Version returns the blob format version.
func (h *BinaryHeader) Version() uint8 { return h.version }

// SRSId returns the spatial reference system id of the geometry.
func (h *BinaryHeader) SRSId() int32 { return h.srsID }

// Envelope returns the envelope stored in the header.
func (h *BinaryHeader) Envelope() Envelope { return h.envelope }

// IsEmpty reports whether the empty-geometry flag is set.
func (h *BinaryHeader) IsEmpty() bool { return h.flags&flagEmpty != 0 }

// IsExtended reports whether the blob holds an extended geometry type.
func (h *BinaryHeader) IsExtended() bool { return h.flags&flagExtended != 0 }

// ByteOrder returns the byte order of the header fields.
func (h *BinaryHeader) ByteOrder() binary.ByteOrder {
	if h.flags&flagByteOrder != 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Size returns the header length in bytes; the WKB geometry starts there.
func (h *BinaryHeader) Size() int {
	return blobFixedSize + h.envelope.Indicator.Size()
}

// EncodeBlob serializes g as a GeoPackage geometry blob. The envelope is
// written unless opts disables it or g has no coordinates.
func EncodeBlob(g Geometry, srsID int32, opts *Options) ([]byte, error) {
	if g.IsNil() {
		return nil, invalid("geometry", "", ErrNilGeometry)
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	order := opts.byteOrder()

	var env Envelope
	if opts.Envelope {
		env = g.Envelope()
	}
	flag, err := orderFlag(order)
	if err != nil {
		return nil, err
	}
	flags := flag | uint8(env.Indicator)<<1
	if g.IsEmpty() {
		flags |= flagEmpty
	}

	b := make([]byte, 0, blobFixedSize+env.Indicator.Size()+Size(g))
	b = append(b, blobMagic0, blobMagic1, blobVersion, flags)
	var srs [4]byte
	order.PutUint32(srs[:], uint32(srsID))
	b = append(b, srs[:]...)
	b = env.AppendBinary(b, order)

	wkb, err := Marshal(g, order)
	if err != nil {
		return nil, err
	}
	return append(b, wkb...), nil
}

// DecodeBlob decodes a GeoPackage geometry blob.
func DecodeBlob(b []byte) (*BinaryHeader, Geometry, error) {
	h, err := NewBinaryHeader(b)
	if err != nil {
		return nil, Geometry{}, err
	}
	if h.IsExtended() {
		return h, Geometry{}, &FormatError{Op: "decode blob", Offset: 3, Actual: uint32(h.flags), Err: ErrUnknownType}
	}
	c := NewCursor(b)
	c.off = h.Size()
	g, err := Read(c)
	if err != nil {
		return h, Geometry{}, err
	}
	if c.Remaining() > 0 {
		return h, Geometry{}, &FormatError{Op: "decode blob", Offset: c.off, Err: ErrTrailingData}
	}
	return h, g, nil
}
