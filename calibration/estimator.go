package calibration

import (
	"context"
	"image"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage/transform"
)

// SolveInput is one camera's calibration problem.
type SolveInput struct {
	ObjectPoints []r3.Vector
	ImagePoints  [][]r2.Point
	ImageSize    image.Point
	Flags        Flags
	// Seed is the starting intrinsic matrix. With FixAspectRatio its fx/fy ratio is kept.
	Seed transform.PinholeCameraIntrinsics
	// SeedDistortion holds the starting k1, k2, p1, p2, k3, k4, k5, k6.
	SeedDistortion []float64
}

// SolveOutput is the solved camera and the solver's own root mean square residual.
type SolveOutput struct {
	Intrinsics   transform.PinholeCameraIntrinsics
	Distortion   []float64
	Rotations    []r3.Vector
	Translations []r3.Vector
	RMS          float64
}

// A Solver estimates intrinsics, distortion and per view poses from correspondences.
type Solver interface {
	Solve(ctx context.Context, in *SolveInput) (*SolveOutput, error)
}

// Estimate is a range checked camera model.
type Estimate struct {
	Model     *CameraModel
	SolverRMS float64
}

// Estimator validates calibration inputs, runs a Solver and checks its result.
type Estimator struct {
	solver Solver
	logger logging.Logger
}

// NewEstimator returns an estimator backed by solver.
func NewEstimator(solver Solver, logger logging.Logger) *Estimator {
	return &Estimator{solver: solver, logger: logger}
}

// Estimate calibrates one camera from the views in imagePoints, each holding one point per
// object point.
func (e *Estimator) Estimate(
	ctx context.Context,
	objectPoints []r3.Vector,
	imagePoints [][]r2.Point,
	imageSize image.Point,
	flags Flags,
) (*Estimate, error) {
	if len(imagePoints) == 0 {
		return nil, ErrNoViews
	}
	if len(objectPoints) == 0 {
		return nil, errors.Wrap(ErrPointCountMismatch, "no object points")
	}
	for i, view := range imagePoints {
		if len(view) != len(objectPoints) {
			return nil, errors.Wrapf(ErrPointCountMismatch, "view %d has %d points, expected %d",
				i, len(view), len(objectPoints))
		}
	}
	if imageSize.X <= 0 || imageSize.Y <= 0 {
		return nil, errors.Errorf("invalid image size %v", imageSize)
	}

	in := &SolveInput{
		ObjectPoints: objectPoints,
		ImagePoints:  imagePoints,
		ImageSize:    imageSize,
		Flags:        flags,
		Seed: transform.PinholeCameraIntrinsics{
			Width:  imageSize.X,
			Height: imageSize.Y,
			Fx:     1,
			Fy:     1,
		},
		SeedDistortion: make([]float64, transform.NumDistortionCoefficients),
	}
	out, err := e.solver.Solve(ctx, in)
	if err != nil {
		return nil, err
	}

	intrinsics := out.Intrinsics
	distortion, err := transform.NewBrownConrady(out.Distortion)
	if err != nil {
		return nil, errors.Wrap(ErrDivergent, err.Error())
	}
	model := &CameraModel{
		PinholeCameraModel: &transform.PinholeCameraModel{
			PinholeCameraIntrinsics: &intrinsics,
			Distortion:              distortion,
		},
		Rotations:    out.Rotations,
		Translations: out.Translations,
	}
	if err := model.checkRange(); err != nil {
		return nil, err
	}
	if len(out.Rotations) != len(imagePoints) || len(out.Translations) != len(imagePoints) {
		return nil, errors.Errorf("solver returned %d poses for %d views", len(out.Rotations), len(imagePoints))
	}
	e.logger.Debugw("solver finished", "views", len(imagePoints), "rms", out.RMS)
	return &Estimate{Model: model, SolverRMS: out.RMS}, nil
}
