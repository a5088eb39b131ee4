// Package gpkg implements the geometry encoding used by OGC GeoPackage files.
// It reads and writes Well-Known Binary geometries in the XY, XYZ, XYM and
// XYZM variants, computes the envelopes stored in GeoPackage geometry blobs,
// and keeps track of the GeoPackage extensions a table or column relies on.
package gpkg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Common errors returned by this package. Every error produced while
// decoding wraps ErrFormat, every error produced while constructing values
// wraps ErrValidation.
var (
	ErrFormat     = errors.New("gpkg: malformed binary input")
	ErrValidation = errors.New("gpkg: invalid value")

	ErrUnexpectedType    = errors.New("gpkg: unexpected geometry type code")
	ErrUnknownType       = errors.New("gpkg: unknown geometry type code")
	ErrTruncated         = errors.New("gpkg: buffer underrun")
	ErrByteOrder         = errors.New("gpkg: invalid byte order flag")
	ErrEnvelopeIndicator = errors.New("gpkg: invalid envelope indicator")
	ErrTrailingData      = errors.New("gpkg: trailing bytes after geometry")
	ErrBlobMagic         = errors.New("gpkg: not a geopackage geometry blob")

	ErrNilGeometry       = errors.New("gpkg: nil geometry")
	ErrDimensionMismatch = errors.New("gpkg: dimension mismatch")
	ErrKindMismatch      = errors.New("gpkg: geometry kind mismatch")
	ErrTableRequired     = errors.New("gpkg: table may not be null if column is not null")
	ErrEmptyField        = errors.New("gpkg: value may not be empty")
	ErrExtensionName     = errors.New("gpkg: invalid extension name")
	ErrScope             = errors.New("gpkg: unrecognized extension scope")
	ErrExtensionConflict = errors.New("gpkg: conflicting extension definition")
	ErrAttributeKind     = errors.New("gpkg: attribute value does not match its kind")

	ErrUnsupportedOrb = errors.New("gpkg: geometry has no orb equivalent")
	ErrNoIndex        = errors.New("gpkg: flatgeobuf file has no spatial index")
	ErrNoFeatures     = errors.New("gpkg: no features to write")
)

// FormatError reports malformed binary input.
type FormatError struct {
	Op       string // operation that failed, e.g. "read polygon"
	Offset   int    // byte offset into the buffer
	Expected uint32 // expected type code, if relevant
	Actual   uint32 // parsed type code, if relevant
	Err      error
}

func (e *FormatError) Error() string {
	if e.Expected != 0 || e.Actual != 0 {
		return fmt.Sprintf("%s at offset %d: %v (expected %d, got %d)", e.Op, e.Offset, e.Err, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() []error { return []error{ErrFormat, e.Err} }

// ValidationError reports a value that could not be constructed.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

func invalid(field, value string, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}

// Options configures geometry writing.
type Options struct {
	ByteOrder binary.ByteOrder // Byte order of every multi-byte field (default: little-endian)
	Envelope  bool             // Include an envelope in geometry blobs (default: true)
}

// DefaultOptions returns default options for writing geometries.
func DefaultOptions() *Options {
	return &Options{
		ByteOrder: binary.LittleEndian,
		Envelope:  true,
	}
}

func (o *Options) byteOrder() binary.ByteOrder {
	if o == nil || o.ByteOrder == nil {
		return binary.LittleEndian
	}
	return o.ByteOrder
}
