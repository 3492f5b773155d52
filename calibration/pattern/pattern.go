// Package pattern describes planar calibration targets and the 3D positions of their features.
package pattern

import (
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrInvalidPatternSpec is returned for unknown pattern names and bad target geometry.
var ErrInvalidPatternSpec = errors.New("invalid calibration pattern")

// MinSquareSize is the smallest accepted feature spacing.
const MinSquareSize = 1e-5

// Type is the kind of calibration target.
type Type int

const (
	// NotExisting is the zero value and never valid.
	NotExisting Type = iota
	// Chessboard features are the interior corners between squares.
	Chessboard
	// CirclesGrid features are the centers of a regular grid of circles.
	CirclesGrid
	// AsymmetricCirclesGrid features are circle centers with every other row shifted by half a period.
	AsymmetricCirclesGrid
)

var typeNames = map[Type]string{
	Chessboard:            "CHESSBOARD",
	CirclesGrid:           "CIRCLES_GRID",
	AsymmetricCirclesGrid: "ASYMMETRIC_CIRCLES_GRID",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "NOT_EXISTING"
}

// ParseType maps a settings pattern name to its Type.
func ParseType(name string) (Type, error) {
	trimmed := strings.TrimSpace(name)
	for t, n := range typeNames {
		if n == trimmed {
			return t, nil
		}
	}
	return NotExisting, errors.Wrapf(ErrInvalidPatternSpec, "unknown pattern %q", name)
}

// Spec is the geometry of a calibration target. Width and Height count features, not squares.
type Spec struct {
	Type       Type
	Width      int
	Height     int
	SquareSize float64
}

// Validate checks the target geometry.
func (s Spec) Validate() error {
	if _, ok := typeNames[s.Type]; !ok {
		return errors.Wrapf(ErrInvalidPatternSpec, "unknown pattern type %d", s.Type)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return errors.Wrapf(ErrInvalidPatternSpec, "invalid board size %dx%d", s.Width, s.Height)
	}
	if !(s.SquareSize > MinSquareSize) {
		return errors.Wrapf(ErrInvalidPatternSpec, "invalid square size %v", s.SquareSize)
	}
	return nil
}

// NumPoints is the number of features on the target.
func (s Spec) NumPoints() int {
	return s.Width * s.Height
}

// Positions returns the feature positions on the z=0 plane in row-major order: index
// i*Width+j holds row i, column j.
func Positions(s Spec) []r3.Vector {
	points := make([]r3.Vector, 0, s.NumPoints())
	for i := 0; i < s.Height; i++ {
		for j := 0; j < s.Width; j++ {
			x := float64(j)
			if s.Type == AsymmetricCirclesGrid {
				x = float64(2*j + i%2)
			}
			points = append(points, r3.Vector{X: x * s.SquareSize, Y: float64(i) * s.SquareSize})
		}
	}
	return points
}
