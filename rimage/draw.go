package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/golang/geo/r2"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()), 1, 0)
}

var cornerRowColors = []color.Color{
	color.RGBA{255, 0, 0, 255},
	color.RGBA{255, 128, 0, 255},
	color.RGBA{200, 200, 0, 255},
	color.RGBA{0, 255, 0, 255},
	color.RGBA{0, 200, 200, 255},
	color.RGBA{0, 0, 255, 255},
	color.RGBA{255, 0, 255, 255},
}

// DrawCorners draws detected pattern points shifted by offset. When found is true the
// points are drawn as a polyline row by row, one color per row; otherwise as red circles.
func DrawCorners(dc *gg.Context, corners []r2.Point, rowLength int, found bool, offset r2.Point) {
	const radius = 4.
	dc.SetLineWidth(1)
	if !found || rowLength <= 0 {
		dc.SetColor(cornerRowColors[0])
		for _, c := range corners {
			dc.DrawCircle(c.X+offset.X, c.Y+offset.Y, radius)
			dc.Stroke()
		}
		return
	}
	var prev r2.Point
	for i, c := range corners {
		p := c.Add(offset)
		dc.SetColor(cornerRowColors[(i/rowLength)%len(cornerRowColors)])
		if i > 0 {
			dc.DrawLine(prev.X, prev.Y, p.X, p.Y)
			dc.Stroke()
		}
		dc.DrawCircle(p.X, p.Y, radius)
		dc.Stroke()
		prev = p
	}
}
