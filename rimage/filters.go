package rimage

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/utils"
)

// GaussianFunction1D takes in a sigma and returns a gaussian function useful for weighing averages or blurring.
func GaussianFunction1D(sigma float64) func(p float64) float64 {
	if sigma <= 0. {
		return func(p float64) float64 {
			return 1.
		}
	}
	return func(p float64) float64 {
		return math.Exp(-0.5*math.Pow(p, 2)/math.Pow(sigma, 2)) / (sigma * math.Sqrt(2.*math.Pi))
	}
}

// GaussianKernel1D returns a normalized kernel covering three sigma on each side of its center.
func GaussianKernel1D(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(math.Ceil(3 * sigma))
	gaus := GaussianFunction1D(sigma)
	kernel := make([]float64, 2*radius+1)
	sum := 0.
	for i := range kernel {
		kernel[i] = gaus(float64(i - radius))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlurFloat64 blurs m with a separable gaussian of the given sigma, replicating the
// border pixels.
func GaussianBlurFloat64(m *mat.Dense, sigma float64) *mat.Dense {
	kernel := GaussianKernel1D(sigma)
	radius := len(kernel) / 2
	rows, cols := m.Dims()

	horizontal := mat.NewDense(rows, cols, nil)
	utils.ParallelForEachRow(rows, func(y int) {
		for x := 0; x < cols; x++ {
			sum := 0.
			for k, w := range kernel {
				sum += w * m.At(y, utils.ClampInt(x+k-radius, 0, cols-1))
			}
			horizontal.Set(y, x, sum)
		}
	})

	out := mat.NewDense(rows, cols, nil)
	utils.ParallelForEachRow(rows, func(y int) {
		for x := 0; x < cols; x++ {
			sum := 0.
			for k, w := range kernel {
				sum += w * horizontal.At(utils.ClampInt(y+k-radius, 0, rows-1), x)
			}
			out.Set(y, x, sum)
		}
	})
	return out
}
