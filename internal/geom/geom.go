// Package geom provides the planar lon/lat geometry used by directional
// filtering: bounding boxes, 3×3 grid selection, and polygon predicates.
// Computation is Euclidean on lon/lat, which is adequate at the scale of a
// single country's administrative boundaries.
package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Area returns the planar area of a multipolygon, holes subtracted.
func Area(mp orb.MultiPolygon) float64 {
	return planar.Area(mp)
}

// Centroid returns the area-weighted centroid of a multipolygon.
func Centroid(mp orb.MultiPolygon) orb.Point {
	c, _ := planar.CentroidArea(mp)
	return c
}

// ContainsPoint reports whether the multipolygon contains the point.
// Boundary points count as contained.
func ContainsPoint(mp orb.MultiPolygon, pt orb.Point) bool {
	return planar.MultiPolygonContains(mp, pt)
}

// Intersects reports whether two multipolygons share any point. Touching
// boundaries count as intersecting.
func Intersects(a, b orb.MultiPolygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, pa := range a {
		for _, pb := range b {
			if polygonsIntersect(pa, pb) {
				return true
			}
		}
	}
	return false
}

// IntersectsPolygon reports whether the multipolygon intersects a single
// polygon.
func IntersectsPolygon(mp orb.MultiPolygon, p orb.Polygon) bool {
	return Intersects(mp, orb.MultiPolygon{p})
}

// polygonsIntersect tests two polygons for overlap: either polygon has a
// vertex inside the other, one fully contains the other, or some pair of
// ring segments crosses.
func polygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, pt := range a[0] {
		if planar.PolygonContains(b, pt) {
			return true
		}
	}
	for _, pt := range b[0] {
		if planar.PolygonContains(a, pt) {
			return true
		}
	}
	for _, ra := range a {
		for _, rb := range b {
			if ringsCross(ra, rb) {
				return true
			}
		}
	}
	return false
}

func ringsCross(a, b orb.Ring) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect is the standard orientation test, inclusive of collinear
// touching so that shared boundaries count as intersection.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

// cross returns the z component of (b-a) × (c-a).
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether c, known collinear with a-b, lies on the segment.
func onSegment(a, b, c orb.Point) bool {
	return min(a[0], b[0]) <= c[0] && c[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= c[1] && c[1] <= max(a[1], b[1])
}
