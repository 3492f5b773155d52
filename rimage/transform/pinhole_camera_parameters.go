package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/utils"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraModel is the model of a pinhole camera.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               Distorter `json:"distortion"`
}

// CheckValid checks the intrinsics and, when present, the distortion model.
func (params *PinholeCameraModel) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("camera model does not exist")
	}
	if err := params.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}
	if params.Distortion != nil {
		return params.Distortion.CheckValid()
	}
	return nil
}

func (params *PinholeCameraModel) distort(x, y float64) (float64, float64) {
	if params.Distortion == nil {
		return x, y
	}
	return params.Distortion.Transform(x, y)
}

// DistortionMap is a function that transforms the undistorted input points (u,v) to the distorted points (x,y)
// according to the model in PinholeCameraModel.Distortion.
func (params *PinholeCameraModel) DistortionMap() func(u, v float64) (float64, float64) {
	return func(u, v float64) (float64, float64) {
		x := (u - params.Ppx) / params.Fx
		y := (v - params.Ppy) / params.Fy
		x, y = params.distort(x, y)
		x = x*params.Fx + params.Ppx
		y = y*params.Fy + params.Ppy
		return x, y
	}
}

// ProjectPoint projects a point given in camera coordinates onto the distorted image plane.
func (params *PinholeCameraModel) ProjectPoint(pt r3.Vector) r2.Point {
	x, y := params.distort(pt.X/pt.Z, pt.Y/pt.Z)
	return r2.Point{X: x*params.Fx + params.Ppx, Y: y*params.Fy + params.Ppy}
}

// UndistortPoints maps distorted pixel coordinates to where an ideal pinhole camera with
// the same intrinsics would have imaged them.
func (params *PinholeCameraModel) UndistortPoints(pts []r2.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	var inverse *InverseBrownConrady
	if bc, ok := params.Distortion.(*BrownConrady); ok {
		inverse = &InverseBrownConrady{bc}
	}
	for i, pt := range pts {
		x := (pt.X - params.Ppx) / params.Fx
		y := (pt.Y - params.Ppy) / params.Fy
		x, y = inverse.Transform(x, y)
		out[i] = r2.Point{X: x*params.Fx + params.Ppx, Y: y*params.Fy + params.Ppy}
	}
	return out
}

// UndistortImage takes an input image and creates a new image the same size with the same camera parameters
// as the original image, but undistorted according to the distortion model in PinholeCameraModel. A bilinear
// interpolation is used to interpolate values between image pixels; pixels that map outside
// the input are black.
func (params *PinholeCameraModel) UndistortImage(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	bounds := img.Bounds()
	// Check dimensions, they should be equal between the color image and what the intrinsics expect
	if params.Width != bounds.Dx() || params.Height != bounds.Dy() {
		return nil, errors.Errorf("img dimension and intrinsics don't match Image(%d,%d) != Intrinsics(%d,%d)",
			bounds.Dx(), bounds.Dy(), params.Width, params.Height)
	}
	undistortedImg := image.NewNRGBA(image.Rect(0, 0, params.Width, params.Height))
	distortionMap := params.DistortionMap()
	utils.ParallelForEachPixel(image.Pt(params.Width, params.Height), func(u, v int) {
		x, y := distortionMap(float64(u), float64(v))
		undistortedImg.SetNRGBA(u, v, bilinearColor(img, x, y))
	})
	return undistortedImg, nil
}

func bilinearColor(img image.Image, x, y float64) color.NRGBA {
	bounds := img.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	if x < 0 || y < 0 || x > w-1 || y > h-1 {
		return color.NRGBA{A: 255}
	}
	x0, y0 := int(x), int(y)
	x1 := utils.ClampInt(x0+1, 0, bounds.Dx()-1)
	y1 := utils.ClampInt(y0+1, 0, bounds.Dy()-1)
	fx, fy := x-float64(x0), y-float64(y0)
	var out [4]float64
	for _, s := range []struct {
		px, py int
		w      float64
	}{
		{x0, y0, (1 - fx) * (1 - fy)},
		{x1, y0, fx * (1 - fy)},
		{x0, y1, (1 - fx) * fy},
		{x1, y1, fx * fy},
	} {
		r, g, b, a := img.At(bounds.Min.X+s.px, bounds.Min.Y+s.py).RGBA()
		out[0] += s.w * float64(r)
		out[1] += s.w * float64(g)
		out[2] += s.w * float64(b)
		out[3] += s.w * float64(a)
	}
	c := color.RGBA64{
		R: uint16(math.Round(out[0])), G: uint16(math.Round(out[1])),
		B: uint16(math.Round(out[2])), A: uint16(math.Round(out[3])),
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if !(params.Fx > 0) || math.IsInf(params.Fx, 0) {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if !(params.Fy > 0) || math.IsInf(params.Fy, 0) {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if !utils.IsFinite(params.Ppx, params.Ppy) {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal point (%#v, %#v)", params.Ppx, params.Ppy))
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return float64(0), float64(0), float64(0)
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point to the ideal (undistorted) image plane.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		return (x/z)*params.Fx + params.Ppx, (y/z)*params.Fy + params.Ppy
	}
	// if depth is zero at this pixel, return negative coordinates so that the cropping to RGB bounds will filter it out
	return -1.0, -1.0
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}
