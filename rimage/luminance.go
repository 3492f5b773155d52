package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/utils"
)

// ErrFlatImage is returned when an image has no intensity variation to work with.
var ErrFlatImage = errors.New("image has uniform intensity")

// ConvertImageToLuminanceFloat returns the luminance of img scaled to [0, 1], indexed as
// (row=y, col=x) relative to the image bounds. An empty image yields nil.
func ConvertImageToLuminanceFloat(img image.Image) *mat.Dense {
	gray := imaging.Grayscale(img)
	size := gray.Bounds().Size()
	if size.X == 0 || size.Y == 0 {
		return nil
	}
	out := mat.NewDense(size.Y, size.X, nil)
	utils.ParallelForEachPixel(size, func(x, y int) {
		out.Set(y, x, float64(gray.NRGBAAt(x, y).R)/255.)
	})
	return out
}

// NormalizeLuminance stretches the values of m in place so they span [0, 1].
func NormalizeLuminance(m *mat.Dense) error {
	lo, hi := mat.Min(m), mat.Max(m)
	if hi-lo < 1e-6 {
		return ErrFlatImage
	}
	scale := 1. / (hi - lo)
	m.Apply(func(_, _ int, v float64) float64 {
		return (v - lo) * scale
	}, m)
	return nil
}

// BilinearInterpolationFloat64 samples m at the sub-pixel location (x, y). Locations outside
// the matrix are clamped to its border.
func BilinearInterpolationFloat64(m *mat.Dense, x, y float64) float64 {
	rows, cols := m.Dims()
	x = utils.Clamp(x, 0, float64(cols-1))
	y = utils.Clamp(y, 0, float64(rows-1))
	x0, y0 := int(x), int(y)
	x1, y1 := utils.ClampInt(x0+1, 0, cols-1), utils.ClampInt(y0+1, 0, rows-1)
	fx, fy := x-float64(x0), y-float64(y0)
	top := (1-fx)*m.At(y0, x0) + fx*m.At(y0, x1)
	bottom := (1-fx)*m.At(y1, x0) + fx*m.At(y1, x1)
	return (1-fy)*top + fy*bottom
}
