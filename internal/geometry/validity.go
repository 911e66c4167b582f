package geometry

// Validity is the result of checking a polygon's suitability for sampling.
type Validity struct {
	Valid        bool   `json:"valid"`
	InvalidCause string `json:"invalid_cause,omitempty"`
}

// Invalid-cause messages surfaced to the room editor.
const (
	causeNotConvexAndIntersecting = "Not convex and there are intersecting edges"
	causeIntersecting             = "There are intersecting edges"
	causeNotConvex                = "Not convex"
)

// crossProduct returns the 2-D cross product of the edge vectors p1->p2 and
// p2->p3.
func crossProduct(p1, p2, p3 Point) float64 {
	return (p2.X-p1.X)*(p3.Y-p2.Y) - (p2.Y-p1.Y)*(p3.X-p2.X)
}

// IsConvex walks consecutive vertex triples and reports whether all nonzero
// cross products share the same sign. Zero cross products (collinear points)
// are skipped.
func IsConvex(poly Polygon) bool {
	n := len(poly)
	if n < 3 {
		return false
	}

	sign := 0
	for i := 0; i < n; i++ {
		cp := crossProduct(poly[i], poly[(i+1)%n], poly[(i+2)%n])
		if cp != 0 {
			s := -1
			if cp > 0 {
				s = 1
			}
			if sign == 0 {
				sign = s
			} else if sign != s {
				return false
			}
		}
	}
	return true
}

// HasEdgeIntersections tests every pair of non-adjacent edges with a coarse
// separating-sign check: the endpoints of one edge must fall strictly on
// opposite sides of the line through the other. This is deliberately not a
// full segment-intersection test and can miss certain touching
// configurations; the room editor relies on this exact behavior.
func HasEdgeIntersections(poly Polygon) bool {
	n := len(poly)
	for i := 0; i < n; i++ {
		edge1Start := poly[i]
		edge1End := poly[(i+1)%n]

		for j := i + 2; j < n+i-1; j++ {
			edge2Start := poly[j%n]
			edge2End := poly[(j+1)%n]

			cp1 := crossProduct(edge1Start, edge1End, edge2Start)
			cp2 := crossProduct(edge1Start, edge1End, edge2End)

			if cp1*cp2 < 0 {
				return true
			}
		}
	}
	return false
}

// Check classifies the polygon: valid iff convex and free of edge
// intersections. The cause string is always populated for invalid polygons
// so callers can surface diagnostics.
func Check(poly Polygon) Validity {
	convex := IsConvex(poly)
	intersected := HasEdgeIntersections(poly)

	var cause string
	switch {
	case !convex && intersected:
		cause = causeNotConvexAndIntersecting
	case convex && intersected:
		cause = causeIntersecting
	case !convex:
		cause = causeNotConvex
	}

	return Validity{Valid: convex && !intersected, InvalidCause: cause}
}
