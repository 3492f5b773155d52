// Package subpixel refines coarse corner locations to sub-pixel accuracy.
package subpixel

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/utils"
)

// Configuration holds the window and termination criteria of the refinement.
type Configuration struct {
	HalfWindow    int     `json:"half-window"`
	MaxIterations int     `json:"max-iterations"`
	Epsilon       float64 `json:"epsilon"` // stop once a step is shorter than this many pixels
}

// DefaultConfiguration is an 11x11 window, 30 iterations and 0.1 pixel steps.
var DefaultConfiguration = Configuration{
	HalfWindow:    5,
	MaxIterations: 30,
	Epsilon:       0.1,
}

// minGradient is the gradient magnitude below which a pixel adds no constraint.
const minGradient = 1e-9

// Refine moves every corner to the point q where the image gradients g at the window pixels
// p satisfy g.(q-p)=0 in the least squares sense. The refined corners are returned in a new
// slice; a corner that would leave its window keeps its input location.
//
// Gradients are central differences on the pixel grid; the window is never resampled at
// the sub-pixel estimate. Each constraint is weighted by a Gaussian of its distance to the
// estimate divided by |g|, which keeps the solution on the edge for edges only one pixel
// wide.
func Refine(img *mat.Dense, corners []r2.Point, cfg Configuration) []r2.Point {
	rows, cols := img.Dims()
	at := func(x, y int) float64 {
		return img.At(utils.ClampInt(y, 0, rows-1), utils.ClampInt(x, 0, cols-1))
	}
	win := float64(cfg.HalfWindow)
	eps := utils.Square(cfg.Epsilon)

	out := make([]r2.Point, len(corners))
	utils.ParallelForEachRow(len(corners), func(idx int) {
		start := corners[idx]
		current := start
		for iter := 0; iter < cfg.MaxIterations; iter++ {
			next, ok := solveWindow(at, current, cfg.HalfWindow)
			if !ok {
				break
			}
			step := next.Sub(current)
			current = next
			if math.Abs(current.X-start.X) > win || math.Abs(current.Y-start.Y) > win {
				break
			}
			if step.Dot(step) <= eps {
				break
			}
		}
		if math.Abs(current.X-start.X) > win || math.Abs(current.Y-start.Y) > win {
			current = start
		}
		out[idx] = current
	})
	return out
}

// solveWindow solves the weighted normal equations of the window around center. It reports
// false when the gradients do not constrain both directions.
func solveWindow(at func(x, y int) float64, center r2.Point, win int) (r2.Point, bool) {
	coeff := 1 / float64(win*win)
	cx, cy := int(math.Round(center.X)), int(math.Round(center.Y))

	var a, b, c, bb1, bb2 float64
	for y := cy - win; y <= cy+win; y++ {
		for x := cx - win; x <= cx+win; x++ {
			gx := at(x+1, y) - at(x-1, y)
			gy := at(x, y+1) - at(x, y-1)
			norm := math.Hypot(gx, gy)
			if norm < minGradient {
				continue
			}
			px, py := float64(x), float64(y)
			m := math.Exp(-(utils.Square(px-center.X)+utils.Square(py-center.Y))*coeff) / norm
			gxx, gxy, gyy := gx*gx*m, gx*gy*m, gy*gy*m
			a += gxx
			b += gxy
			c += gyy
			bb1 += gxx*px + gxy*py
			bb2 += gxy*px + gyy*py
		}
	}

	det := a*c - b*b
	if math.Abs(det) < 1e-12 {
		return r2.Point{}, false
	}
	return r2.Point{
		X: (c*bb1 - b*bb2) / det,
		Y: (a*bb2 - b*bb1) / det,
	}, true
}
