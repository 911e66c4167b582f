// Package geometry provides the planar primitives used by the location
// update pipeline: point-in-polygon testing, rejection sampling of a random
// point inside a polygon, and polygon validity checking. All functions are
// pure and operate on the floor plane.
package geometry

import (
	"errors"
	"math/rand"
)

// Point is a position on the floor plane.
type Point struct {
	X float64
	Y float64
}

// Polygon is an ordered vertex list. Insertion order defines the edges, with
// an implicit closing edge from the last vertex back to the first.
type Polygon []Point

// ErrSamplingExhausted is returned when rejection sampling gives up before
// finding a point inside the polygon. This happens for degenerate polygons
// whose area is tiny relative to their bounding box.
var ErrSamplingExhausted = errors.New("sampling exhausted: no point found inside polygon")

// maxSampleAttempts bounds the rejection-sampling loop so a pathological
// polygon cannot stall a detection transaction.
const maxSampleAttempts = 10000

// Contains reports whether pt lies inside the polygon, using the ray-casting
// (even-odd) rule. For self-intersecting polygons the result follows the
// even-odd rule rather than any simple-polygon guarantee; validate the
// polygon separately if that matters.
func Contains(poly Polygon, pt Point) bool {
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		pi, pj := poly[i], poly[j]
		if (pi.Y > pt.Y) != (pj.Y > pt.Y) &&
			pt.X < (pj.X-pi.X)*(pt.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// BoundingBox returns the axis-aligned bounding box of the polygon.
func BoundingBox(poly Polygon) (min, max Point) {
	if len(poly) == 0 {
		return Point{}, Point{}
	}
	min, max = poly[0], poly[0]
	for _, p := range poly[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
	}
	return min, max
}

// RandomPointInside samples a uniformly random point inside the polygon by
// rejection sampling over its bounding box. Returns ErrSamplingExhausted if
// no interior point is found within the attempt cap.
func RandomPointInside(poly Polygon) (Point, error) {
	min, max := BoundingBox(poly)
	for i := 0; i < maxSampleAttempts; i++ {
		pt := Point{
			X: min.X + rand.Float64()*(max.X-min.X),
			Y: min.Y + rand.Float64()*(max.Y-min.Y),
		}
		if Contains(poly, pt) {
			return pt, nil
		}
	}
	return Point{}, ErrSamplingExhausted
}
