package rimage

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func countNonBlack(img image.Image) int {
	count := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r+g+bl > 0 {
				count++
			}
		}
	}
	return count
}

func TestDrawCorners(t *testing.T) {
	corners := []r2.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 10, Y: 20}, {X: 20, Y: 20}}

	dc := gg.NewContext(100, 40)
	dc.SetColor(color.Black)
	dc.Clear()
	DrawCorners(dc, corners, 2, true, r2.Point{X: 50})
	img := dc.Image()
	test.That(t, countNonBlack(img), test.ShouldBeGreaterThan, 0)
	// everything was shifted into the right half
	test.That(t, countNonBlack(img.(interface {
		SubImage(image.Rectangle) image.Image
	}).SubImage(image.Rect(0, 0, 50, 40))), test.ShouldEqual, 0)

	dc = gg.NewContext(40, 40)
	dc.SetColor(color.Black)
	dc.Clear()
	DrawCorners(dc, corners, 2, false, r2.Point{})
	test.That(t, countNonBlack(dc.Image()), test.ShouldBeGreaterThan, 0)
}

func TestReadWriteImageFile(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	img.SetGray(3, 2, color.Gray{Y: 200})
	path := filepath.Join(t.TempDir(), "frame.png")
	test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)

	read, err := ReadImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Bounds(), test.ShouldResemble, img.Bounds())
	r, _, _, _ := read.At(3, 2).RGBA()
	test.That(t, r>>8, test.ShouldEqual, uint32(200))

	_, err = ReadImageFromFile(filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
}
