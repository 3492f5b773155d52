package rimage

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/utils"
)

// Kernel is a convolution filter. Content is indexed [row][column].
type Kernel struct {
	Content [][]float64
	Height  int
	Width   int
}

// At returns the coefficient at column x, row y.
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// Size returns the kernel dimensions.
func (k *Kernel) Size() image.Point {
	return image.Point{k.Width, k.Height}
}

// GetSecondDerivativeX returns the central difference kernel for d²/dx².
func GetSecondDerivativeX() Kernel {
	return Kernel{[][]float64{
		{1, -2, 1},
	},
		1,
		3,
	}
}

// GetSecondDerivativeY returns the central difference kernel for d²/dy².
func GetSecondDerivativeY() Kernel {
	return Kernel{[][]float64{
		{1},
		{-2},
		{1},
	},
		3,
		1,
	}
}

// GetMixedDerivativeXY returns the central difference kernel for d²/dxdy.
func GetMixedDerivativeXY() Kernel {
	return Kernel{[][]float64{
		{0.25, 0, -0.25},
		{0, 0, 0},
		{-0.25, 0, 0.25},
	},
		3,
		3,
	}
}

// ConvolveGrayFloat64 convolves m with a kernel anchored at its center. Pixels outside the
// matrix take the value of the nearest border pixel. There is no clamping of the result.
func ConvolveGrayFloat64(m *mat.Dense, filter *Kernel) (*mat.Dense, error) {
	if filter.Width%2 == 0 || filter.Height%2 == 0 {
		return nil, errors.Errorf("kernel size must be odd, got %dx%d", filter.Width, filter.Height)
	}
	h, w := m.Dims()
	result := mat.NewDense(h, w, nil)
	kernelSize := filter.Size()
	anchor := image.Point{kernelSize.X / 2, kernelSize.Y / 2}

	utils.ParallelForEachPixel(image.Point{w, h}, func(x int, y int) {
		sum := float64(0)
		for ky := 0; ky < kernelSize.Y; ky++ {
			row := utils.ClampInt(y+ky-anchor.Y, 0, h-1)
			for kx := 0; kx < kernelSize.X; kx++ {
				col := utils.ClampInt(x+kx-anchor.X, 0, w-1)
				sum += m.At(row, col) * filter.At(kx, ky)
			}
		}
		result.Set(y, x, sum)
	})
	return result, nil
}
