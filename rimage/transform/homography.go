package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 matrix (represented as a 2D array) used to transform a plane from the perspective of a 2D
// camera to the perspective of another 2D camera. Indices are [row][column].
type Homography [3][3]float64

// NewHomographyFromDense copies a 3x3 matrix into a Homography.
func NewHomographyFromDense(m mat.Matrix) *Homography {
	var h Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i][j] = m.At(i, j)
		}
	}
	return &h
}

// At returns the coefficient at row, col.
func (h *Homography) At(row, col int) float64 {
	return h[row][col]
}

// Dense returns the homography as a gonum matrix.
func (h *Homography) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
}

// Apply maps pt through the homography.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// Inverse returns the inverse mapping.
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return nil, errors.Wrap(err, "homography is not invertible")
	}
	return NewHomographyFromDense(&inv), nil
}

// EstimateHomography fits the homography mapping src onto dst with the normalized direct
// linear transform. At least four correspondences are needed.
func EstimateHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != len(dst) {
		return nil, errors.New("sets of points src and dst must have the same number of elements")
	}
	if len(src) < 4 {
		return nil, errors.New("sets of points must have at least 4 elements")
	}
	points1, T1 := normalizePoints(src)
	points2, T2 := normalizePoints(dst)

	m := mat.NewDense(2*len(src), 9, nil)
	for i := range points1 {
		p, q := points1[i], points2[i]
		m.SetRow(2*i, []float64{p.X, p.Y, 1, 0, 0, 0, -q.X * p.X, -q.X * p.Y, -q.X})
		m.SetRow(2*i+1, []float64{0, 0, 0, p.X, p.Y, 1, -q.Y * p.X, -q.Y * p.Y, -q.Y})
	}
	decomposition := performSVD(m)
	if decomposition == nil {
		return nil, errors.New("failed to factorize homography system")
	}
	last := decomposition.V.ColView(8)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, last.AtVec(i))
	}

	// denormalize: T2^-1 @ Hn @ T1
	var t2Inv mat.Dense
	if err := t2Inv.Inverse(T2); err != nil {
		return nil, errors.Wrap(err, "degenerate destination points")
	}
	var partial, out mat.Dense
	partial.Mul(&t2Inv, hn)
	out.Mul(&partial, T1)
	scale := out.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		scale = mat.Norm(&out, 2)
	}
	out.Scale(1/scale, &out)
	return NewHomographyFromDense(&out), nil
}
