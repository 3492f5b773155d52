package rimage

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestSplitStereo(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 1280, 400))
	frame.SetGray(5, 7, color.Gray{Y: 10})
	frame.SetGray(645, 7, color.Gray{Y: 20})

	left, right, err := SplitStereo(frame, 640, 400)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left.Bounds(), test.ShouldResemble, image.Rect(0, 0, 640, 400))
	test.That(t, right.Bounds(), test.ShouldResemble, image.Rect(0, 0, 640, 400))

	r, _, _, _ := left.At(5, 7).RGBA()
	test.That(t, r>>8, test.ShouldEqual, uint32(10))
	r, _, _, _ = right.At(5, 7).RGBA()
	test.That(t, r>>8, test.ShouldEqual, uint32(20))
}

func TestSplitStereoOffsetBounds(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 100, 50)).SubImage(image.Rect(10, 5, 90, 45))
	left, right, err := SplitStereo(frame, 40, 40)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left.Bounds().Size(), test.ShouldResemble, image.Pt(40, 40))
	test.That(t, right.Bounds().Size(), test.ShouldResemble, image.Pt(40, 40))
}

func TestSplitStereoTooSmall(t *testing.T) {
	for _, size := range []image.Point{{1279, 400}, {1280, 399}, {640, 400}} {
		_, _, err := SplitStereo(image.NewGray(image.Rectangle{Max: size}), 640, 400)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrInvalidFrameSize), test.ShouldBeTrue)
	}
	_, _, err := SplitStereo(image.NewGray(image.Rect(0, 0, 10, 10)), 0, 10)
	test.That(t, errors.Is(err, ErrInvalidFrameSize), test.ShouldBeTrue)
}

func TestSplitStereoLargerFrame(t *testing.T) {
	left, right, err := SplitStereo(image.NewGray(image.Rect(0, 0, 1300, 420)), 640, 400)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left.Bounds().Size(), test.ShouldResemble, image.Pt(640, 400))
	test.That(t, right.Bounds().Size(), test.ShouldResemble, image.Pt(640, 400))
}
