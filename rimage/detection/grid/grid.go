// Package grid assigns unordered feature candidates to the points of a planar lattice.
package grid

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/stereocalib/rimage/transform"
)

// ErrNoGrid is returned when the candidates cannot be matched to the lattice.
var ErrNoGrid = errors.New("candidates do not form the expected grid")

// assignTolerance is the largest allowed distance between a projected lattice point and its
// candidate, relative to the median candidate spacing.
const assignTolerance = 0.4

// Order returns candidates rearranged so index i holds the candidate matching lattice[i].
// lattice is row-major with rowLength points per row. Every lattice point needs a distinct
// candidate. Among the orderings allowed by the symmetries of the lattice, the one whose
// first point is nearest the image origin is returned, with rows running towards +x.
func Order(candidates, lattice []r2.Point, rowLength int) ([]r2.Point, error) {
	if rowLength < 2 || len(lattice) < 2*rowLength || len(lattice)%rowLength != 0 {
		return nil, errors.Wrapf(ErrNoGrid, "lattice of %d points with rows of %d is degenerate", len(lattice), rowLength)
	}
	if len(candidates) < len(lattice) {
		return nil, errors.Wrapf(ErrNoGrid, "%d candidates for %d lattice points", len(candidates), len(lattice))
	}

	idealHull := ConvexHull(lattice)
	k := len(idealHull)
	imageHull := ConvexHull(candidates)
	if k < 4 || len(imageHull) < k {
		return nil, errors.Wrapf(ErrNoGrid, "hull has %d vertices, lattice hull has %d", len(imageHull), k)
	}
	imageHull = reduceHull(imageHull, k)

	spacing, err := MedianSpacing(candidates)
	if err != nil {
		return nil, err
	}
	tol := assignTolerance * spacing

	var best []r2.Point
	dst := make([]r2.Point, k)
	for _, dir := range []int{1, -1} {
		for shift := 0; shift < k; shift++ {
			for i := range dst {
				dst[i] = imageHull[((shift+dir*i)%k+k)%k]
			}
			ordered, ok := fit(idealHull, dst, lattice, candidates, tol)
			if !ok {
				continue
			}
			if best == nil || preferred(ordered, best, rowLength) {
				best = ordered
			}
		}
	}
	if best == nil {
		return nil, errors.Wrap(ErrNoGrid, "no hull correspondence explains the candidates")
	}
	return best, nil
}

// fit projects the lattice through the homography defined by one hull correspondence, assigns
// candidates, then refits on every assigned point and assigns again.
func fit(hullSrc, hullDst, lattice, candidates []r2.Point, tol float64) ([]r2.Point, bool) {
	h, err := transform.EstimateHomography(hullSrc, hullDst)
	if err != nil {
		return nil, false
	}
	assigned, ok := assign(lattice, candidates, h, tol)
	if !ok {
		return nil, false
	}
	h, err = transform.EstimateHomography(lattice, assigned)
	if err != nil {
		return nil, false
	}
	return assign(lattice, candidates, h, tol)
}

func assign(lattice, candidates []r2.Point, h *transform.Homography, tol float64) ([]r2.Point, bool) {
	used := make([]bool, len(candidates))
	out := make([]r2.Point, len(lattice))
	for i, lp := range lattice {
		projected := h.Apply(lp)
		if math.IsNaN(projected.X) || math.IsNaN(projected.Y) {
			return nil, false
		}
		nearest, dist := -1, math.Inf(1)
		for j, c := range candidates {
			if d := c.Sub(projected).Norm(); d < dist {
				nearest, dist = j, d
			}
		}
		if dist > tol || used[nearest] {
			return nil, false
		}
		used[nearest] = true
		out[i] = candidates[nearest]
	}
	return out, true
}

// preferred reports whether a is the canonical choice over b.
func preferred(a, b []r2.Point, rowLength int) bool {
	sa, sb := a[0].X+a[0].Y, b[0].X+b[0].Y
	if sa != sb {
		return sa < sb
	}
	return rowDirectionX(a, rowLength) > rowDirectionX(b, rowLength)
}

func rowDirectionX(pts []r2.Point, rowLength int) float64 {
	d := pts[rowLength-1].Sub(pts[0])
	n := d.Norm()
	if n == 0 {
		return 0
	}
	return d.X / n
}

// MedianSpacing is the median distance from each point to its nearest neighbor.
func MedianSpacing(pts []r2.Point) (float64, error) {
	if len(pts) < 2 {
		return 0, errors.Wrap(ErrNoGrid, "need at least two points to measure spacing")
	}
	nearest := make([]float64, len(pts))
	for i, p := range pts {
		nearest[i] = math.Inf(1)
		for j, q := range pts {
			if i != j {
				nearest[i] = math.Min(nearest[i], p.Sub(q).Norm())
			}
		}
	}
	median, err := stats.Median(nearest)
	if err != nil {
		return 0, errors.Wrap(err, "cannot compute grid spacing")
	}
	if median == 0 {
		return 0, errors.Wrap(ErrNoGrid, "duplicate candidates")
	}
	return median, nil
}
