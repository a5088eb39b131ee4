package gpkg

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb/geojson"
)

// =============================================================================
// Test Data Generators
// =============================================================================

// generateCoord returns a random coordinate within lon/lat bounds. Z is an
// elevation in metres and M a running distance.
func generateCoord(r *rand.Rand, d Dimension, m float64) Coord {
	return Coord{
		X: -180 + r.Float64()*360,
		Y: -90 + r.Float64()*180,
		Z: r.Float64() * 4000,
		M: m,
	}.normalize(d)
}

// generatePoints creates n random points.
func generatePoints(r *rand.Rand, n int, d Dimension) []Geometry {
	out := make([]Geometry, n)
	for i := range out {
		out[i] = Must(NewPoint(d, generateCoord(r, d, float64(i))))
	}
	return out
}

// generateLineStrings creates n random line strings with the given number of vertices.
func generateLineStrings(r *rand.Rand, n, vertices int, d Dimension) []Geometry {
	out := make([]Geometry, n)
	for i := range out {
		start := generateCoord(r, d, 0)
		coords := make([]Coord, vertices)
		for j := range coords {
			c := start
			c.X += float64(j) * 0.01
			c.Y += float64(j) * 0.01
			if d.HasM() {
				c.M = float64(j)
			}
			coords[j] = c
		}
		out[i] = Must(NewLineString(d, coords))
	}
	return out
}

// generatePolygons creates n circle-like polygons with the given number of vertices.
func generatePolygons(r *rand.Rand, n, vertices int, d Dimension) []Geometry {
	out := make([]Geometry, n)
	for i := range out {
		center := generateCoord(r, d, 0)
		radius := 0.01 + r.Float64()*0.05

		ring := make(LinearRing, vertices+1)
		for j := 0; j < vertices; j++ {
			angle := 2 * math.Pi * float64(j) / float64(vertices)
			c := center
			c.X += radius * math.Cos(angle)
			c.Y += radius * math.Sin(angle)
			ring[j] = c
		}
		ring[vertices] = ring[0]
		out[i] = Must(NewPolygon(d, ring))
	}
	return out
}

func generateGeometries(r *rand.Rand, n int, geomType string, d Dimension) []Geometry {
	switch geomType {
	case "point":
		return generatePoints(r, n, d)
	case "linestring":
		return generateLineStrings(r, n, 10, d)
	case "polygon":
		return generatePolygons(r, n, 4, d)
	case "complexpolygon":
		return generatePolygons(r, n, 32, d)
	}
	return nil
}

func toFeatures(geoms []Geometry) []Feature {
	out := make([]Feature, len(geoms))
	for i, g := range geoms {
		out[i] = Feature{Geometry: g, Attributes: []Attribute{{"id", int64(i)}}}
	}
	return out
}

var benchSchema = Schema{{Name: "id", Kind: ValueInteger}}

// =============================================================================
// Size Comparison Tests
// =============================================================================

func TestSizeComparison_Points(t *testing.T) {
	testSizeComparison(t, "point", []int{10, 100, 1000})
}

func TestSizeComparison_LineStrings(t *testing.T) {
	testSizeComparison(t, "linestring", []int{10, 100, 1000})
}

func TestSizeComparison_ComplexPolygons(t *testing.T) {
	testSizeComparison(t, "complexpolygon", []int{10, 100, 1000})
}

func testSizeComparison(t *testing.T, geomType string, sizes []int) {
	r := rand.New(rand.NewSource(42))

	t.Logf("\n=== Size Comparison: %s ===", geomType)
	t.Logf("%-12s | %-6s | %-12s | %-12s | %-12s", "Geometries", "Dim", "WKB (bytes)", "Blobs", "GeoJSON")

	for _, n := range sizes {
		for _, d := range Dimensions {
			geoms := generateGeometries(r, n, geomType, d)

			var wkbSize, blobSize int
			fc := geojson.NewFeatureCollection()
			for _, g := range geoms {
				data, err := Marshal(g, nil)
				if err != nil {
					t.Fatalf("marshal failed: %v", err)
				}
				if len(data) != Size(g) {
					t.Fatalf("Size = %d, Marshal wrote %d", Size(g), len(data))
				}
				wkbSize += len(data)

				blob, err := EncodeBlob(g, 4326, nil)
				if err != nil {
					t.Fatalf("blob failed: %v", err)
				}
				blobSize += len(blob)

				og, err := ToOrb(g)
				if err != nil {
					t.Fatalf("orb conversion failed: %v", err)
				}
				fc.Append(geojson.NewFeature(og))
			}

			geoJSONBytes, err := json.Marshal(fc)
			if err != nil {
				t.Fatalf("JSON marshal failed: %v", err)
			}

			t.Logf("%-12d | %-6s | %-12d | %-12d | %-12d", n, d, wkbSize, blobSize, len(geoJSONBytes))
		}
	}
}

// =============================================================================
// Encoding Benchmarks
// =============================================================================

func BenchmarkMarshal_Points_XY(b *testing.B)   { benchmarkMarshal(b, "point", XY) }
func BenchmarkMarshal_Points_XYZM(b *testing.B) { benchmarkMarshal(b, "point", XYZM) }

func BenchmarkMarshal_LineStrings_XY(b *testing.B)  { benchmarkMarshal(b, "linestring", XY) }
func BenchmarkMarshal_LineStrings_XYZ(b *testing.B) { benchmarkMarshal(b, "linestring", XYZ) }

func BenchmarkMarshal_ComplexPolygons_XY(b *testing.B)   { benchmarkMarshal(b, "complexpolygon", XY) }
func BenchmarkMarshal_ComplexPolygons_XYZM(b *testing.B) { benchmarkMarshal(b, "complexpolygon", XYZM) }

func benchmarkMarshal(b *testing.B, geomType string, d Dimension) {
	r := rand.New(rand.NewSource(42))
	geoms := generateGeometries(r, 1000, geomType, d)

	var buf bytes.Buffer
	enc := NewEncoder(&buf, binary.LittleEndian)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf.Reset()
		for _, g := range geoms {
			if err := enc.Encode(g); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkEncodeBlob_ComplexPolygons_XYZ(b *testing.B) {
	r := rand.New(rand.NewSource(42))
	geoms := generateGeometries(r, 1000, "complexpolygon", XYZ)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for _, g := range geoms {
			if _, err := EncodeBlob(g, 4326, nil); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkWriteFlatGeobuf_Points_1000(b *testing.B) {
	r := rand.New(rand.NewSource(42))
	features := toFeatures(generatePoints(r, 1000, XY))
	opts := &FlatGeobufOptions{IncludeIndex: true}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := WriteFlatGeobuf(&buf, features, benchSchema, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// =============================================================================
// Decoding Benchmarks
// =============================================================================

func BenchmarkUnmarshal_Points_XY(b *testing.B)   { benchmarkUnmarshal(b, "point", XY) }
func BenchmarkUnmarshal_Points_XYZM(b *testing.B) { benchmarkUnmarshal(b, "point", XYZM) }

func BenchmarkUnmarshal_LineStrings_XY(b *testing.B)  { benchmarkUnmarshal(b, "linestring", XY) }
func BenchmarkUnmarshal_LineStrings_XYZ(b *testing.B) { benchmarkUnmarshal(b, "linestring", XYZ) }

func BenchmarkUnmarshal_ComplexPolygons_XY(b *testing.B)   { benchmarkUnmarshal(b, "complexpolygon", XY) }
func BenchmarkUnmarshal_ComplexPolygons_XYZM(b *testing.B) { benchmarkUnmarshal(b, "complexpolygon", XYZM) }

func benchmarkUnmarshal(b *testing.B, geomType string, d Dimension) {
	r := rand.New(rand.NewSource(42))
	geoms := generateGeometries(r, 1000, geomType, d)

	var buf bytes.Buffer
	enc := NewEncoder(&buf, binary.LittleEndian)
	for _, g := range geoms {
		if err := enc.Encode(g); err != nil {
			b.Fatal(err)
		}
	}
	data := buf.Bytes()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		c := NewCursor(data)
		for c.Remaining() > 0 {
			if _, err := Read(c); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkDecodeBlob_ComplexPolygons_XYZ(b *testing.B) {
	r := rand.New(rand.NewSource(42))
	geoms := generateGeometries(r, 1000, "complexpolygon", XYZ)
	blobs := make([][]byte, len(geoms))
	for i, g := range geoms {
		blobs[i] = must(EncodeBlob(g, 4326, nil))
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for _, blob := range blobs {
			if _, _, err := DecodeBlob(blob); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkReadFlatGeobuf_Points_1000(b *testing.B) {
	r := rand.New(rand.NewSource(42))
	var buf bytes.Buffer
	if err := WriteFlatGeobuf(&buf, toFeatures(generatePoints(r, 1000, XY)), benchSchema, nil); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		reader, err := NewFlatGeobufReader(data)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := reader.Features(); err != nil {
			b.Fatal(err)
		}
	}
}

// =============================================================================
// Summary Report Test
// =============================================================================

func TestEncodingSummary(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping encoding summary in short mode")
	}

	r := rand.New(rand.NewSource(42))

	t.Log("================================================================")
	t.Log("WKB vs GeoPackage blob vs FlatGeobuf")
	t.Log("================================================================")
	t.Logf("%-20s | %-10s | %-10s | %-10s", "Dataset", "WKB", "Blobs", "FlatGeobuf")

	testCases := []struct {
		name     string
		geomType string
		count    int
	}{
		{"1K Points", "point", 1000},
		{"1K LineStrings", "linestring", 1000},
		{"1K Polygons", "polygon", 1000},
		{"1K Complex Polys", "complexpolygon", 1000},
	}

	for _, tc := range testCases {
		geoms := generateGeometries(r, tc.count, tc.geomType, XY)

		var wkbSize, blobSize int
		for _, g := range geoms {
			wkbSize += Size(g)
			blobSize += len(must(EncodeBlob(g, 4326, nil)))
		}

		var fgbBuf bytes.Buffer
		if err := WriteFlatGeobuf(&fgbBuf, toFeatures(geoms), benchSchema, nil); err != nil {
			t.Fatalf("FlatGeobuf write failed: %v", err)
		}

		t.Logf("%-20s | %-10s | %-10s | %-10s",
			tc.name, formatBytes(wkbSize), formatBytes(blobSize), formatBytes(fgbBuf.Len()))
	}
}

// must panics if err is non-nil.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func formatBytes(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	} else if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	} else {
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
