package gpkg

import (
	"fmt"

	"github.com/paulmach/orb"
)

// ToOrb converts g to its orb equivalent. orb geometries are planar, so
// Z and M values are dropped. Empty points have no orb representation and
// convert to nil inside collections and to an error at the top level.
func ToOrb(g Geometry) (orb.Geometry, error) {
	if g.IsNil() {
		return nil, invalid("geometry", "", ErrNilGeometry)
	}

	switch g.Kind() {
	case KindPoint:
		c, ok := g.Coord()
		if !ok {
			return nil, fmt.Errorf("%w: empty point", ErrUnsupportedOrb)
		}
		return orb.Point{c.X, c.Y}, nil

	case KindLineString:
		return orb.LineString(coordsToOrb(g.coords)), nil

	case KindPolygon:
		return polygonToOrb(g), nil

	case KindMultiPoint:
		mp := make(orb.MultiPoint, 0, len(g.parts))
		for _, p := range g.parts {
			if c, ok := p.Coord(); ok {
				mp = append(mp, orb.Point{c.X, c.Y})
			}
		}
		return mp, nil

	case KindMultiLineString:
		mls := make(orb.MultiLineString, 0, len(g.parts))
		for _, p := range g.parts {
			mls = append(mls, orb.LineString(coordsToOrb(p.coords)))
		}
		return mls, nil

	case KindMultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(g.parts))
		for _, p := range g.parts {
			mp = append(mp, polygonToOrb(p))
		}
		return mp, nil

	case KindGeometryCollection:
		coll := make(orb.Collection, 0, len(g.parts))
		for _, p := range g.parts {
			if p.Kind() == KindPoint && p.IsEmpty() {
				continue
			}
			child, err := ToOrb(p)
			if err != nil {
				return nil, err
			}
			coll = append(coll, child)
		}
		return coll, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOrb, g.Type())
}

func coordsToOrb(coords []Coord) []orb.Point {
	pts := make([]orb.Point, len(coords))
	for i, c := range coords {
		pts[i] = orb.Point{c.X, c.Y}
	}
	return pts
}

func polygonToOrb(g Geometry) orb.Polygon {
	poly := make(orb.Polygon, 0, len(g.rings))
	for _, r := range g.rings {
		poly = append(poly, orb.Ring(coordsToOrb(r)))
	}
	return poly
}

// FromOrb converts an orb geometry into an XY geometry. An orb.Ring
// becomes a single-ring polygon and an orb.Bound its rectangle polygon.
func FromOrb(geom orb.Geometry) (Geometry, error) {
	if geom == nil {
		return Geometry{}, invalid("geometry", "", ErrNilGeometry)
	}

	switch v := geom.(type) {
	case orb.Point:
		return NewPoint(XY, Coord{X: v[0], Y: v[1]})

	case orb.MultiPoint:
		parts := make([]Geometry, len(v))
		for i, p := range v {
			parts[i] = Geometry{code: NewTypeCode(KindPoint, XY), coords: []Coord{{X: p[0], Y: p[1]}}}
		}
		return NewMultiPoint(XY, parts...)

	case orb.LineString:
		return NewLineString(XY, coordsFromOrb(v))

	case orb.MultiLineString:
		parts := make([]Geometry, len(v))
		for i, ls := range v {
			parts[i] = Geometry{code: NewTypeCode(KindLineString, XY), coords: coordsFromOrb(ls)}
		}
		return NewMultiLineString(XY, parts...)

	case orb.Ring:
		return NewPolygon(XY, coordsFromOrb(v))

	case orb.Polygon:
		return polygonFromOrb(v), nil

	case orb.MultiPolygon:
		parts := make([]Geometry, len(v))
		for i, p := range v {
			parts[i] = polygonFromOrb(p)
		}
		return NewMultiPolygon(XY, parts...)

	case orb.Collection:
		parts := make([]Geometry, 0, len(v))
		for _, child := range v {
			g, err := FromOrb(child)
			if err != nil {
				return Geometry{}, err
			}
			parts = append(parts, g)
		}
		return NewGeometryCollection(XY, parts...)

	case orb.Bound:
		return polygonFromOrb(v.ToPolygon()), nil
	}

	return Geometry{}, fmt.Errorf("%w: %T", ErrUnsupportedOrb, geom)
}

func coordsFromOrb(pts []orb.Point) []Coord {
	if len(pts) == 0 {
		return nil
	}
	coords := make([]Coord, len(pts))
	for i, p := range pts {
		coords[i] = Coord{X: p[0], Y: p[1]}
	}
	return coords
}

func polygonFromOrb(p orb.Polygon) Geometry {
	g := Geometry{code: NewTypeCode(KindPolygon, XY)}
	for _, r := range p {
		g.rings = append(g.rings, coordsFromOrb(r))
	}
	return g
}
