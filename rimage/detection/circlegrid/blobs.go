package circlegrid

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/utils"
)

// BlobConfiguration stores the thresholding and blob filtering parameters.
type BlobConfiguration struct {
	AdaptiveRadius int     `json:"adaptive-radius"` // half size of the local mean window
	AdaptiveOffset float64 `json:"adaptive-offset"` // how far below the local mean a pixel must be
	MinArea        int     `json:"min-area"`
	MinFill        float64 `json:"min-fill"` // area over the area of the ellipse inscribed in the bounding box
	MaxFill        float64 `json:"max-fill"`
	MaxAspect      float64 `json:"max-aspect"`
}

// DefaultBlobConf finds dark circles a few pixels across or larger.
var DefaultBlobConf = BlobConfiguration{
	AdaptiveRadius: 25,
	AdaptiveOffset: 0.05,
	MinArea:        6,
	MinFill:        0.6,
	MaxFill:        1.3,
	MaxAspect:      2,
}

// Blob is a connected set of dark pixels.
type Blob struct {
	Centroid r2.Point
	Area     int
	Bounds   image.Rectangle
}

// integralImage returns the summed area table of m with a leading zero row and column.
func integralImage(m *mat.Dense) *mat.Dense {
	h, w := m.Dims()
	sums := mat.NewDense(h+1, w+1, nil)
	for y := 0; y < h; y++ {
		row := 0.
		for x := 0; x < w; x++ {
			row += m.At(y, x)
			sums.Set(y+1, x+1, sums.At(y, x+1)+row)
		}
	}
	return sums
}

// Threshold marks dark pixels. With adaptive set a pixel is dark when it is below the mean of
// its neighborhood by more than the configured offset, otherwise when it is below the middle
// of the intensity range. The mask is indexed y*width+x.
func Threshold(m *mat.Dense, adaptive bool, cfg *BlobConfiguration) []bool {
	h, w := m.Dims()
	mask := make([]bool, h*w)
	if !adaptive {
		mid := (mat.Min(m) + mat.Max(m)) / 2
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				mask[y*w+x] = m.At(y, x) < mid
			}
		}
		return mask
	}

	sums := integralImage(m)
	r := cfg.AdaptiveRadius
	utils.ParallelForEachRow(h, func(y int) {
		y0, y1 := utils.ClampInt(y-r, 0, h-1), utils.ClampInt(y+r, 0, h-1)+1
		for x := 0; x < w; x++ {
			x0, x1 := utils.ClampInt(x-r, 0, w-1), utils.ClampInt(x+r, 0, w-1)+1
			total := sums.At(y1, x1) - sums.At(y0, x1) - sums.At(y1, x0) + sums.At(y0, x0)
			mean := total / float64((y1-y0)*(x1-x0))
			mask[y*w+x] = m.At(y, x) < mean-cfg.AdaptiveOffset
		}
	})
	return mask
}

// FindBlobs groups the 4-connected pixels of mask and keeps the round ones that do not touch
// the image border. Centroids are weighted by darkness.
func FindBlobs(m *mat.Dense, mask []bool, cfg *BlobConfiguration) []Blob {
	h, w := m.Dims()
	visited := make([]bool, len(mask))
	var blobs []Blob
	queue := make([]int, 0, 64)
	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		visited[start] = true
		queue = append(queue[:0], start)
		bounds := image.Rect(start%w, start/w, start%w+1, start/w+1)
		var sumW, sumX, sumY float64
		area := 0
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := idx%w, idx/w
			area++
			weight := 1 - m.At(y, x)
			sumW += weight
			sumX += weight * float64(x)
			sumY += weight * float64(y)
			bounds = bounds.Union(image.Rect(x, y, x+1, y+1))
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= h {
					continue
				}
				nIdx := n[1]*w + n[0]
				if mask[nIdx] && !visited[nIdx] {
					visited[nIdx] = true
					queue = append(queue, nIdx)
				}
			}
		}

		if area < cfg.MinArea || sumW <= 0 {
			continue
		}
		if bounds.Min.X == 0 || bounds.Min.Y == 0 || bounds.Max.X == w || bounds.Max.Y == h {
			continue
		}
		bw, bh := float64(bounds.Dx()), float64(bounds.Dy())
		fill := float64(area) / (math.Pi / 4 * bw * bh)
		aspect := math.Max(bw/bh, bh/bw)
		if fill < cfg.MinFill || fill > cfg.MaxFill || aspect > cfg.MaxAspect {
			continue
		}
		blobs = append(blobs, Blob{
			Centroid: r2.Point{X: sumX / sumW, Y: sumY / sumW},
			Area:     area,
			Bounds:   bounds,
		})
	}
	return blobs
}
