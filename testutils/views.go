package testutils

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/rimage/transform"
)

// Pose places the target in front of a camera. Rotation is a Rodrigues vector.
type Pose struct {
	Rotation    r3.Vector
	Translation r3.Vector
}

// TruthModel returns a mildly distorted camera of the given size.
func TruthModel(width, height int) *transform.PinholeCameraModel {
	return &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: &transform.PinholeCameraIntrinsics{
			Width:  width,
			Height: height,
			Fx:     520,
			Fy:     515,
			Ppx:    float64(width)/2 + 2,
			Ppy:    float64(height)/2 - 2,
		},
		Distortion: &transform.BrownConrady{
			RadialK1:     -0.12,
			RadialK2:     0.05,
			TangentialP1: 0.001,
			TangentialP2: -0.0005,
		},
	}
}

// Poses returns n views of the target, tilted in turn about different axes, with the target
// center on the optical axis region at roughly distance times its width.
func Poses(spec pattern.Spec, n int, distance float64) []Pose {
	positions := pattern.Positions(spec)
	var center r3.Vector
	var extent float64
	for _, p := range positions {
		center = center.Add(p)
		extent = math.Max(extent, math.Max(p.X, p.Y))
	}
	center = center.Mul(1 / float64(len(positions)))

	poses := make([]Pose, n)
	for i := range poses {
		theta := 2 * math.Pi * float64(i) / float64(n)
		rvec := r3.Vector{X: 0.35 * math.Sin(theta), Y: 0.35 * math.Cos(theta), Z: 0.1 * math.Sin(2*theta)}
		rot := transform.RodriguesToRotation(rvec)
		rotatedCenter := transform.RotatePoint(rot, center)
		target := r3.Vector{
			X: 0.08 * extent * math.Cos(theta),
			Y: 0.06 * extent * math.Sin(theta),
			Z: distance * extent * (1 + 0.1*float64(i%3)),
		}
		poses[i] = Pose{Rotation: rvec, Translation: target.Sub(rotatedCenter)}
	}
	return poses
}

// ProjectViews returns the exact image points of the target at each pose.
func ProjectViews(spec pattern.Spec, model *transform.PinholeCameraModel, poses []Pose) [][]r2.Point {
	positions := pattern.Positions(spec)
	views := make([][]r2.Point, len(poses))
	for i, pose := range poses {
		views[i] = transform.ProjectPoints(positions, pose.Rotation, pose.Translation, model)
	}
	return views
}
