// Package testutils synthesizes calibration views for tests.
package testutils

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/rimage"
	"go.viam.com/stereocalib/rimage/transform"
	"go.viam.com/stereocalib/utils"
)

// supersampling is the number of samples per pixel axis WarpBoard averages.
const supersampling = 4

// WarpBoard renders the target into an image of the given size. h maps target plane
// coordinates, in the same units as the square size, to output pixel coordinates; pixel
// centers sit on integer coordinates. Each output pixel is the mean of the target over its
// unit square, like a sensor integrating over a photosite, so edges keep their sub-pixel
// position. Everything off the board is white.
func WarpBoard(spec pattern.Spec, h *transform.Homography, size image.Point, pixelsPerSquare int) (*image.Gray, error) {
	board, layout, err := pattern.Render(spec, pixelsPerSquare)
	if err != nil {
		return nil, err
	}
	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}
	lum := rimage.ConvertImageToLuminanceFloat(board)
	rows, cols := lum.Dims()
	sample := func(p r2.Point) float64 {
		obj := inv.Apply(p)
		src := layout.ToPixel(obj.X, obj.Y)
		// rendered pixel i covers [i, i+1)
		bx, by := src.X-0.5, src.Y-0.5
		if bx < 0 || by < 0 || bx > float64(cols-1) || by > float64(rows-1) {
			return 1
		}
		return rimage.BilinearInterpolationFloat64(lum, bx, by)
	}

	out := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	utils.ParallelForEachPixel(size, func(x, y int) {
		var sum float64
		for i := 0; i < supersampling; i++ {
			for j := 0; j < supersampling; j++ {
				sum += sample(r2.Point{
					X: float64(x) + (float64(j)+0.5)/supersampling - 0.5,
					Y: float64(y) + (float64(i)+0.5)/supersampling - 0.5,
				})
			}
		}
		v := sum / (supersampling * supersampling)
		out.SetGray(x, y, color.Gray{Y: uint8(utils.Clamp(v*255+0.5, 0, 255))})
	})
	return out, nil
}

// PoseHomography is the plane homography K[r1 r2 t] of a distortion free camera viewing the
// z=0 target plane from pose.
func PoseHomography(intrinsics *transform.PinholeCameraIntrinsics, pose Pose) *transform.Homography {
	rot := transform.RodriguesToRotation(pose.Rotation)
	var h transform.Homography
	cols := [3]r3.Vector{
		{X: rot.At(0, 0), Y: rot.At(1, 0), Z: rot.At(2, 0)},
		{X: rot.At(0, 1), Y: rot.At(1, 1), Z: rot.At(2, 1)},
		pose.Translation,
	}
	for c, v := range cols {
		h[0][c] = intrinsics.Fx*v.X + intrinsics.Ppx*v.Z
		h[1][c] = intrinsics.Fy*v.Y + intrinsics.Ppy*v.Z
		h[2][c] = v.Z
	}
	return &h
}

// StereoFrame places left and right side by side.
func StereoFrame(left, right image.Image) image.Image {
	lb, rb := left.Bounds(), right.Bounds()
	height := lb.Dy()
	if rb.Dy() > height {
		height = rb.Dy()
	}
	frame := imaging.New(lb.Dx()+rb.Dx(), height, color.White)
	frame = imaging.Paste(frame, left, image.Point{})
	frame = imaging.Paste(frame, right, image.Point{X: lb.Dx()})
	return frame
}
