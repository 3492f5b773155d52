// Package circlegrid finds the circle centers of symmetric and asymmetric circle grid targets.
package circlegrid

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/rimage/detection/grid"
)

// ErrNotFound is returned when the image does not show the full grid.
var ErrNotFound = errors.New("circle grid not found")

// Lattice returns the circle layout, row-major. Asymmetric grids shift odd rows by half a
// period.
func Lattice(width, height int, asymmetric bool) []r2.Point {
	pts := make([]r2.Point, 0, width*height)
	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			x := float64(j)
			if asymmetric {
				x = float64(2*j + i%2)
			}
			pts = append(pts, r2.Point{X: x, Y: float64(i)})
		}
	}
	return pts
}

// FindCirclesGrid returns the width*height circle centers of the grid shown in img, a
// luminance matrix, ordered row by row.
func FindCirclesGrid(
	img *mat.Dense,
	width, height int,
	asymmetric, adaptive bool,
	cfg *BlobConfiguration,
) ([]r2.Point, error) {
	n := width * height
	blobs := FindBlobs(img, Threshold(img, adaptive, cfg), cfg)
	if len(blobs) < n {
		return nil, errors.Wrapf(ErrNotFound, "found %d blobs, need %d", len(blobs), n)
	}
	if len(blobs) > n {
		blobs = closestToMedianArea(blobs, n)
	}
	centers := make([]r2.Point, len(blobs))
	for i, b := range blobs {
		centers[i] = b.Centroid
	}
	ordered, err := grid.Order(centers, Lattice(width, height, asymmetric), width)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "%v", err)
	}
	return ordered, nil
}

// closestToMedianArea keeps the n blobs whose area is nearest the median area.
func closestToMedianArea(blobs []Blob, n int) []Blob {
	areas := make([]float64, len(blobs))
	for i, b := range blobs {
		areas[i] = float64(b.Area)
	}
	median, err := stats.Median(areas)
	if err != nil {
		return blobs[:n]
	}
	sorted := append([]Blob(nil), blobs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(float64(sorted[i].Area)-median) < math.Abs(float64(sorted[j].Area)-median)
	})
	return sorted[:n]
}
