package gpkg

import (
	"errors"
	"testing"
)

func TestTypeCodeArithmetic(t *testing.T) {
	for _, d := range Dimensions {
		for _, k := range Kinds {
			code := NewTypeCode(k, d)
			sf := uint32(code) % 1000
			base := uint32(code) - sf

			if Kind(sf) != k || Dimension(base) != d {
				t.Errorf("code %d: expected (%d, %d), got (%d, %d)", code, k, d, sf, base)
			}
			if code.Kind() != k {
				t.Errorf("code %d: Kind() = %v, want %v", code, code.Kind(), k)
			}
			if code.Dimension() != d {
				t.Errorf("code %d: Dimension() = %v, want %v", code, code.Dimension(), d)
			}
			if !code.Valid() {
				t.Errorf("code %d: expected valid", code)
			}
		}
	}
}

func TestTypeCodes(t *testing.T) {
	codes := TypeCodes()
	if len(codes) != 28 {
		t.Fatalf("expected 28 type codes, got %d", len(codes))
	}
	seen := map[TypeCode]bool{}
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate code %d", c)
		}
		seen[c] = true
	}
}

func TestTypeCodeString(t *testing.T) {
	tests := []struct {
		code     TypeCode
		expected string
	}{
		{1, "Point"},
		{1002, "LineStringZ"},
		{2003, "PolygonM"},
		{3006, "MultiPolygonZM"},
		{7, "GeometryCollection"},
		{8, "TypeCode(8)"},
		{4001, "TypeCode(4001)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.code.String(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseTypeCode(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint32
		valid bool
	}{
		{"Point", 1, true},
		{"GeometryCollectionZM", 3007, true},
		{"zero", 0, false},
		{"CircularString", 8, false},
		{"unknown base", 4001, false},
		{"odd base", 1500, false},
		{"base only", 2000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ParseTypeCode(tt.raw)
			if tt.valid {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if uint32(code) != tt.raw {
					t.Errorf("expected %d, got %d", tt.raw, code)
				}
				return
			}
			if !errors.Is(err, ErrFormat) || !errors.Is(err, ErrUnknownType) {
				t.Errorf("expected unknown type format error, got %v", err)
			}
		})
	}
}

func TestDimension(t *testing.T) {
	tests := []struct {
		d      Dimension
		z, m   bool
		stride int
	}{
		{XY, false, false, 2},
		{XYZ, true, false, 3},
		{XYM, false, true, 3},
		{XYZM, true, true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			if tt.d.HasZ() != tt.z || tt.d.HasM() != tt.m {
				t.Errorf("axes: got z=%v m=%v", tt.d.HasZ(), tt.d.HasM())
			}
			if tt.d.Stride() != tt.stride {
				t.Errorf("stride: expected %d, got %d", tt.stride, tt.d.Stride())
			}
		})
	}
}

func TestKindByName(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		ok   bool
	}{
		{"POINT", KindPoint, true},
		{"linestring", KindLineString, true},
		{"MultiPolygon", KindMultiPolygon, true},
		{"GEOMCOLLECTION", KindGeometryCollection, true},
		{"GEOMETRYCOLLECTION", KindGeometryCollection, true},
		{"CURVEPOLYGON", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := KindByName(tt.name)
			if ok != tt.ok || k != tt.kind {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.kind, tt.ok, k, ok)
			}
		})
	}
}

func TestKindElement(t *testing.T) {
	for k, want := range map[Kind]Kind{
		KindMultiPoint:      KindPoint,
		KindMultiLineString: KindLineString,
		KindMultiPolygon:    KindPolygon,
	} {
		got, ok := k.Element()
		if !ok || got != want {
			t.Errorf("%v: expected element %v, got %v (%v)", k, want, got, ok)
		}
	}
	if _, ok := KindGeometryCollection.Element(); ok {
		t.Error("geometry collection is not homogeneous")
	}
}
