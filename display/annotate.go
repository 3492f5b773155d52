// Package display renders and reports the progress of a calibration run.
package display

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"

	"go.viam.com/stereocalib/calibration"
	"go.viam.com/stereocalib/rimage"
)

const messageSize = 16.

var (
	calibratedColor = color.RGBA{0, 255, 0, 255}
	pendingColor    = color.RGBA{255, 0, 0, 255}
)

// Annotate draws the stereo preview of a status: both halves side by side with their
// detected points, the status message in the lower right corner, and an inverted image on
// the frame a live view was accepted. Once calibrated, ShowUndistorted swaps in the
// undistorted halves.
func Annotate(s calibration.Status) (image.Image, error) {
	if s.Left == nil || s.Right == nil {
		return nil, errors.New("status has no frame halves")
	}
	left, right := s.Left, s.Right
	leftPoints, rightPoints := s.LeftPoints, s.RightPoints
	if s.Mode == calibration.Calibrated && s.ShowUndistorted && s.LeftCalibration != nil && s.RightCalibration != nil {
		var err error
		left, leftPoints, err = undistort(s.LeftCalibration, left, leftPoints)
		if err != nil {
			return nil, err
		}
		right, rightPoints, err = undistort(s.RightCalibration, right, rightPoints)
		if err != nil {
			return nil, err
		}
	}

	lb, rb := left.Bounds(), right.Bounds()
	height := lb.Dy()
	if rb.Dy() > height {
		height = rb.Dy()
	}
	frame := imaging.New(lb.Dx()+rb.Dx(), height, color.Black)
	frame = imaging.Paste(frame, left, image.Point{})
	frame = imaging.Paste(frame, right, image.Point{X: lb.Dx()})

	dc := gg.NewContextForImage(frame)
	rimage.DrawCorners(dc, leftPoints, s.RowLength, s.LeftFound, r2.Point{})
	rimage.DrawCorners(dc, rightPoints, s.RowLength, s.RightFound, r2.Point{X: float64(lb.Dx())})

	msg := s.Message()
	dc.SetFontFace(truetype.NewFace(rimage.Font(), &truetype.Options{Size: messageSize}))
	textWidth, _ := dc.MeasureString(msg)
	origin := image.Point{
		X: dc.Width() - 2*int(textWidth) - 10,
		Y: dc.Height() - 2*int(messageSize) - 10,
	}
	if origin.X < 0 {
		origin.X = 0
	}
	c := pendingColor
	if s.Mode == calibration.Calibrated {
		c = calibratedColor
	}
	rimage.DrawString(dc, msg, origin, c, messageSize)

	out := dc.Image()
	if s.Accepted && s.Live {
		return imaging.Invert(out), nil
	}
	return out, nil
}

func undistort(c *calibration.Calibration, img image.Image, pts []r2.Point) (image.Image, []r2.Point, error) {
	model := c.Model.PinholeCameraModel
	undistorted, err := model.UndistortImage(img)
	if err != nil {
		return nil, nil, err
	}
	return undistorted, model.UndistortPoints(pts), nil
}
