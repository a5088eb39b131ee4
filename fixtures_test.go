package gpkg

import (
	"testing"
)

// sampleCoord returns a distinct coordinate for index i with the axes d
// does not declare zeroed.
func sampleCoord(d Dimension, i int) Coord {
	f := float64(i)
	return Coord{X: f + 0.5, Y: f*2 - 1, Z: -1.25 * f, M: 100 + f}.normalize(d)
}

func sampleCoords(d Dimension, start, n int) []Coord {
	coords := make([]Coord, n)
	for i := range coords {
		coords[i] = sampleCoord(d, start+i)
	}
	return coords
}

func sampleRing(d Dimension, start int) LinearRing {
	r := LinearRing(sampleCoords(d, start, 4))
	return append(r, r[0])
}

// sampleGeometry builds a non-empty geometry of the given kind and dimension.
func sampleGeometry(t testing.TB, k Kind, d Dimension) Geometry {
	t.Helper()
	var (
		g   Geometry
		err error
	)
	switch k {
	case KindPoint:
		g, err = NewPoint(d, sampleCoord(d, 1))
	case KindLineString:
		g, err = NewLineString(d, sampleCoords(d, 0, 3))
	case KindPolygon:
		g, err = NewPolygon(d, sampleRing(d, 0), sampleRing(d, 10))
	case KindMultiPoint:
		g, err = NewMultiPoint(d, sampleGeometry(t, KindPoint, d), Must(NewPoint(d, sampleCoord(d, 7))))
	case KindMultiLineString:
		g, err = NewMultiLineString(d, sampleGeometry(t, KindLineString, d), Must(NewLineString(d, sampleCoords(d, 5, 2))))
	case KindMultiPolygon:
		g, err = NewMultiPolygon(d, sampleGeometry(t, KindPolygon, d), Must(NewPolygon(d, sampleRing(d, 20))))
	case KindGeometryCollection:
		g, err = NewGeometryCollection(d,
			sampleGeometry(t, KindPoint, d),
			sampleGeometry(t, KindLineString, d),
			sampleGeometry(t, KindMultiPolygon, d),
			Must(NewGeometryCollection(d, sampleGeometry(t, KindMultiPoint, d))),
		)
	default:
		t.Fatalf("unknown kind %v", k)
	}
	if err != nil {
		t.Fatalf("building %v %v: %v", k, d, err)
	}
	return g
}

// emptyGeometry builds the empty geometry of the given kind and dimension.
func emptyGeometry(t testing.TB, k Kind, d Dimension) Geometry {
	t.Helper()
	var (
		g   Geometry
		err error
	)
	switch k {
	case KindPoint:
		g, err = NewEmptyPoint(d)
	case KindLineString:
		g, err = NewLineString(d, nil)
	case KindPolygon:
		g, err = NewPolygon(d)
	default:
		g, err = newCollection(k, d, nil)
	}
	if err != nil {
		t.Fatalf("building empty %v %v: %v", k, d, err)
	}
	return g
}
