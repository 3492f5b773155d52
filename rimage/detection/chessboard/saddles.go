package chessboard

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/rimage"
	"go.viam.com/stereocalib/utils"
)

// SaddleConfiguration stores the parameters to turn the Hessian of an image into a list of saddle points.
type SaddleConfiguration struct {
	BlurSigma         float64 `json:"blur-sigma"`         // gaussian blur applied before differentiation
	RelativeThreshold float64 `json:"relative-threshold"` // fraction of the strongest response a saddle must reach
	ScoreThresholdMin float64 `json:"score-min"`          // absolute floor on the saddle response
	NMSWindowSize     int     `json:"win-size"`           // half size of the non-maximum suppression window
}

// DefaultSaddleConf stores the default saddle detection parameters.
var DefaultSaddleConf = SaddleConfiguration{
	BlurSigma:         1.5,
	RelativeThreshold: 0.1,
	ScoreThresholdMin: 1e-4,
	NMSWindowSize:     4,
}

// Saddle is a local maximum of the saddle response.
type Saddle struct {
	Point r2.Point
	Score float64
}

// computePixelWiseHessianDeterminant returns, for each pixel, the negated determinant of the
// Hessian clipped at zero. It is positive only at saddle points, where the image curves up
// along one direction and down along the other.
func computePixelWiseHessianDeterminant(img *mat.Dense) (*mat.Dense, error) {
	dxx := rimage.GetSecondDerivativeX()
	dyy := rimage.GetSecondDerivativeY()
	dxy := rimage.GetMixedDerivativeXY()
	gXX, err := rimage.ConvolveGrayFloat64(img, &dxx)
	if err != nil {
		return nil, err
	}
	gYY, err := rimage.ConvolveGrayFloat64(img, &dyy)
	if err != nil {
		return nil, err
	}
	gXY, err := rimage.ConvolveGrayFloat64(img, &dxy)
	if err != nil {
		return nil, err
	}
	nRows, nCols := img.Dims()
	out := mat.NewDense(nRows, nCols, nil)
	out.Apply(func(r, c int, _ float64) float64 {
		return math.Max(0, gXY.At(r, c)*gXY.At(r, c)-gXX.At(r, c)*gYY.At(r, c))
	}, out)
	return out, nil
}

// NonMaxSuppression returns the pixels of img that are above thresh and are the maximum of the
// (2*winSize+1) square window around them, strongest first.
func NonMaxSuppression(img *mat.Dense, winSize int, thresh float64) []Saddle {
	h, w := img.Dims()
	rows := make([][]Saddle, h)
	utils.ParallelForEachRow(h, func(y int) {
		for x := 0; x < w; x++ {
			v := img.At(y, x)
			if v < thresh || v <= 0 {
				continue
			}
			isMax := true
			for ny := utils.ClampInt(y-winSize, 0, h-1); ny <= utils.ClampInt(y+winSize, 0, h-1) && isMax; ny++ {
				for nx := utils.ClampInt(x-winSize, 0, w-1); nx <= utils.ClampInt(x+winSize, 0, w-1); nx++ {
					n := img.At(ny, nx)
					// ties go to the first pixel in raster order
					earlier := ny < y || (ny == y && nx < x)
					if n > v || (earlier && n == v) {
						isMax = false
						break
					}
				}
			}
			if isMax {
				rows[y] = append(rows[y], Saddle{Point: r2.Point{X: float64(x), Y: float64(y)}, Score: v})
			}
		}
	})
	var saddles []Saddle
	for _, r := range rows {
		saddles = append(saddles, r...)
	}
	sort.SliceStable(saddles, func(i, j int) bool {
		return saddles[i].Score > saddles[j].Score
	})
	return saddles
}

// GetSaddleMapPoints returns the saddle response map of img and its thresholded local maxima,
// strongest first.
func GetSaddleMapPoints(img *mat.Dense, conf *SaddleConfiguration) (*mat.Dense, []Saddle, error) {
	blurred := img
	if conf.BlurSigma > 0 {
		blurred = rimage.GaussianBlurFloat64(img, conf.BlurSigma)
	}
	saddleMap, err := computePixelWiseHessianDeterminant(blurred)
	if err != nil {
		return nil, nil, err
	}
	thresh := math.Max(conf.RelativeThreshold*mat.Max(saddleMap), conf.ScoreThresholdMin)
	return saddleMap, NonMaxSuppression(saddleMap, conf.NMSWindowSize, thresh), nil
}

