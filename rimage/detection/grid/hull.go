package grid

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// cross is the z component of (a-o)x(b-o).
func cross(o, a, b r2.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// ConvexHull returns the hull vertices of pts with the monotone chain algorithm. Collinear
// points on an edge are dropped.
func ConvexHull(pts []r2.Point) []r2.Point {
	if len(pts) < 3 {
		return append([]r2.Point(nil), pts...)
	}
	sorted := append([]r2.Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X == sorted[j].X {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	hull := make([]r2.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// distanceToChord is the distance from p to the line through a and b.
func distanceToChord(a, b, p r2.Point) float64 {
	length := b.Sub(a).Norm()
	if length == 0 {
		return p.Sub(a).Norm()
	}
	return math.Abs(cross(a, b, p)) / length
}

// reduceHull drops the flattest vertex until k remain. Vertices of a projected lattice that
// lie on a hull edge are only slightly off the chord joining their neighbors, while true
// corners are a whole grid step away from it.
func reduceHull(hull []r2.Point, k int) []r2.Point {
	out := append([]r2.Point(nil), hull...)
	for len(out) > k {
		flattest, best := -1, math.Inf(1)
		for i := range out {
			prev := out[(i+len(out)-1)%len(out)]
			next := out[(i+1)%len(out)]
			if d := distanceToChord(prev, next, out[i]); d < best {
				flattest, best = i, d
			}
		}
		out = append(out[:flattest], out[flattest+1:]...)
	}
	return out
}
