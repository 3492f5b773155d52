package calibration

import (
	"context"
	"image"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/logging"
)

// A Detector finds the ordered pattern points of spec in an image.
type Detector interface {
	Detect(img image.Image, spec pattern.Spec) ([]r2.Point, bool)
}

// Calibration is a scored camera model together with the views it was computed from.
type Calibration struct {
	Model       *CameraModel
	Report      ReprojectionReport
	ImageSize   image.Point
	ImagePoints [][]r2.Point
	SolverRMS   float64
}

// CameraSession holds the calibration state of one camera of the stereo pair.
type CameraSession struct {
	name         string
	spec         pattern.Spec
	objectPoints []r3.Vector
	detector     Detector
	estimator    *Estimator
	accumulator  Accumulator
	last         *Calibration
	logger       logging.Logger
}

// NewCameraSession returns a session calibrating against spec.
func NewCameraSession(
	name string,
	spec pattern.Spec,
	detector Detector,
	estimator *Estimator,
	logger logging.Logger,
) (*CameraSession, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if detector == nil || estimator == nil {
		return nil, errors.Errorf("camera %q needs a detector and an estimator", name)
	}
	return &CameraSession{
		name:         name,
		spec:         spec,
		objectPoints: pattern.Positions(spec),
		detector:     detector,
		estimator:    estimator,
		logger:       logger,
	}, nil
}

// Name identifies the camera.
func (cs *CameraSession) Name() string {
	return cs.name
}

// Spec is the target this session calibrates against.
func (cs *CameraSession) Spec() pattern.Spec {
	return cs.spec
}

// ObjectPoints are the target's points in its own plane.
func (cs *CameraSession) ObjectPoints() []r3.Vector {
	return append([]r3.Vector(nil), cs.objectPoints...)
}

// Detect looks for the target in img.
func (cs *CameraSession) Detect(img image.Image) ([]r2.Point, bool) {
	return cs.detector.Detect(img, cs.spec)
}

// Accept records a view.
func (cs *CameraSession) Accept(points []r2.Point) {
	cs.accumulator.Accept(points)
}

// Count is the number of recorded views.
func (cs *CameraSession) Count() int {
	return cs.accumulator.Count()
}

// Reset drops the recorded views. The last calibration is kept.
func (cs *CameraSession) Reset() {
	cs.accumulator.Reset()
}

// Calibrate estimates and scores a camera model from the recorded views. The result is not
// kept until Commit is called.
func (cs *CameraSession) Calibrate(ctx context.Context, imageSize image.Point, flags Flags) (*Calibration, error) {
	views := cs.accumulator.Views()
	est, err := cs.estimator.Estimate(ctx, cs.objectPoints, views, imageSize, flags)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot calibrate %s camera", cs.name)
	}
	report, err := Score(cs.objectPoints, views, est.Model.Rotations, est.Model.Translations, est.Model.PinholeCameraModel)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot score %s camera", cs.name)
	}
	cs.logger.Infow("calibrated", "views", len(views), "rms", report.RMS, "fx", est.Model.Fx, "fy", est.Model.Fy)
	return &Calibration{
		Model:       est.Model,
		Report:      report,
		ImageSize:   imageSize,
		ImagePoints: views,
		SolverRMS:   est.SolverRMS,
	}, nil
}

// Commit makes c the session's last calibration.
func (cs *CameraSession) Commit(c *Calibration) {
	cs.last = c
}

// Last is the most recently committed calibration, or nil.
func (cs *CameraSession) Last() *Calibration {
	return cs.last
}
