package pattern

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Layout locates the target features inside a rendered image.
type Layout struct {
	// Origin is the pixel position of the feature at (0, 0, 0).
	Origin r2.Point
	// PixelsPerUnit converts target units to pixels.
	PixelsPerUnit float64
}

// ToPixel maps a position on the target plane to rendered image coordinates.
func (l Layout) ToPixel(x, y float64) r2.Point {
	return r2.Point{X: l.Origin.X + x*l.PixelsPerUnit, Y: l.Origin.Y + y*l.PixelsPerUnit}
}

// Render draws a printable, fronto-parallel image of the target with a one square white
// margin. Features are spaced pixelsPerSquare apart.
func Render(s Spec, pixelsPerSquare int) (image.Image, Layout, error) {
	if err := s.Validate(); err != nil {
		return nil, Layout{}, err
	}
	if pixelsPerSquare < 4 {
		return nil, Layout{}, errors.Errorf("need at least 4 pixels per square, got %d", pixelsPerSquare)
	}
	pps := float64(pixelsPerSquare)
	layout := Layout{PixelsPerUnit: pps / s.SquareSize}

	var dc *gg.Context
	switch s.Type {
	case Chessboard:
		// Width x Height interior corners need (Width+1) x (Height+1) squares.
		cols, rows := s.Width+1, s.Height+1
		dc = gg.NewContext((cols+2)*pixelsPerSquare, (rows+2)*pixelsPerSquare)
		dc.SetColor(color.White)
		dc.Clear()
		dc.SetColor(color.Black)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if (r+c)%2 == 0 {
					dc.DrawRectangle(float64(c+1)*pps, float64(r+1)*pps, pps, pps)
				}
			}
		}
		dc.Fill()
		layout.Origin = r2.Point{X: 2 * pps, Y: 2 * pps}
	case CirclesGrid, AsymmetricCirclesGrid:
		spanX := float64(s.Width - 1)
		if s.Type == AsymmetricCirclesGrid {
			spanX = float64(2*(s.Width-1) + 1)
		}
		spanY := float64(s.Height - 1)
		dc = gg.NewContext(int((spanX+2)*pps), int((spanY+2)*pps))
		dc.SetColor(color.White)
		dc.Clear()
		dc.SetColor(color.Black)
		layout.Origin = r2.Point{X: pps, Y: pps}
		for _, p := range Positions(s) {
			center := layout.ToPixel(p.X, p.Y)
			dc.DrawCircle(center.X, center.Y, 0.3*pps)
		}
		dc.Fill()
	default:
		return nil, Layout{}, errors.Wrapf(ErrInvalidPatternSpec, "cannot render %v", s.Type)
	}
	return dc.Image(), layout, nil
}
