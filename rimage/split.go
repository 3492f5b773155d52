package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrInvalidFrameSize is returned when a stereo frame is smaller than the expected layout.
var ErrInvalidFrameSize = errors.New("invalid stereo frame size")

// SplitStereo cuts a side by side stereo frame into its left and right halves. Each half
// is leftWidth x height and starts at the origin.
func SplitStereo(frame image.Image, leftWidth, height int) (image.Image, image.Image, error) {
	if leftWidth <= 0 || height <= 0 {
		return nil, nil, errors.Wrapf(ErrInvalidFrameSize, "half size must be positive, got %dx%d", leftWidth, height)
	}
	bounds := frame.Bounds()
	if bounds.Dx() < 2*leftWidth || bounds.Dy() < height {
		return nil, nil, errors.Wrapf(ErrInvalidFrameSize,
			"frame is %dx%d, need at least %dx%d", bounds.Dx(), bounds.Dy(), 2*leftWidth, height)
	}
	origin := bounds.Min
	left := imaging.Crop(frame, image.Rect(0, 0, leftWidth, height).Add(origin))
	right := imaging.Crop(frame, image.Rect(leftWidth, 0, 2*leftWidth, height).Add(origin))
	return left, right, nil
}
