// Package chessboard finds the interior corners of a chessboard calibration target.
package chessboard

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/rimage"
	"go.viam.com/stereocalib/rimage/detection/grid"
)

// ErrNotFound is returned when the image does not show the full board.
var ErrNotFound = errors.New("chessboard not found")

// DetectionConfiguration stores the parameters necessary for chessboard detection in an image.
type DetectionConfiguration struct {
	Saddle SaddleConfiguration `json:"saddle"`
}

// DefaultDetectionConf is the configuration used by the detector.
var DefaultDetectionConf = DetectionConfiguration{Saddle: DefaultSaddleConf}

// Lattice returns the interior corner layout of a board, row-major.
func Lattice(width, height int) []r2.Point {
	pts := make([]r2.Point, 0, width*height)
	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			pts = append(pts, r2.Point{X: float64(j), Y: float64(i)})
		}
	}
	return pts
}

// FindChessboard returns the width*height interior corners of the board shown in img, a
// luminance matrix, ordered row by row. Corners are at whole pixel precision.
func FindChessboard(img *mat.Dense, width, height int, cfg *DetectionConfiguration) ([]r2.Point, error) {
	n := width * height
	_, saddles, err := GetSaddleMapPoints(img, &cfg.Saddle)
	if err != nil {
		return nil, err
	}
	if len(saddles) < n {
		return nil, errors.Wrapf(ErrNotFound, "found %d saddle points, need %d", len(saddles), n)
	}
	candidates := make([]r2.Point, n)
	for i := range candidates {
		candidates[i] = saddles[i].Point
	}
	ordered, err := grid.Order(candidates, Lattice(width, height), width)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "%v", err)
	}
	return ordered, nil
}

// FastCheck looks for saddle points on a half resolution copy of img and reports whether
// there are enough of them for a board of n corners to be present.
func FastCheck(img image.Image, n int, cfg *DetectionConfiguration) bool {
	b := img.Bounds()
	if b.Dx() < 4 || b.Dy() < 4 {
		return false
	}
	small := resize.Resize(uint(b.Dx()/2), uint(b.Dy()/2), img, resize.Bilinear)
	lum := rimage.ConvertImageToLuminanceFloat(small)
	if err := rimage.NormalizeLuminance(lum); err != nil {
		return false
	}
	half := cfg.Saddle
	half.BlurSigma /= 2
	half.NMSWindowSize = (half.NMSWindowSize + 1) / 2
	_, saddles, err := GetSaddleMapPoints(lum, &half)
	if err != nil {
		return false
	}
	return 2*len(saddles) >= n
}
