package calibration

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/stereocalib/rimage/transform"
	"go.viam.com/stereocalib/utils"
)

// CameraModel is the result of calibrating one camera: intrinsics, Brown-Conrady distortion
// and the pose of the target in every view.
type CameraModel struct {
	*transform.PinholeCameraModel
	Rotations    []r3.Vector // Rodrigues vectors
	Translations []r3.Vector
}

// BrownConrady returns the distortion coefficients.
func (m *CameraModel) BrownConrady() *transform.BrownConrady {
	if bc, ok := m.Distortion.(*transform.BrownConrady); ok && bc != nil {
		return bc
	}
	return &transform.BrownConrady{}
}

// DistortionCoefficients returns k1, k2, p1, p2, k3, k4, k5, k6.
func (m *CameraModel) DistortionCoefficients() []float64 {
	return m.BrownConrady().Parameters()
}

// CameraMatrix returns the 3x3 intrinsic matrix, row-major.
func (m *CameraModel) CameraMatrix() [3][3]float64 {
	return [3][3]float64{
		{m.Fx, 0, m.Ppx},
		{0, m.Fy, m.Ppy},
		{0, 0, 1},
	}
}

// NumViews is the number of poses in the model.
func (m *CameraModel) NumViews() int {
	return len(m.Rotations)
}

// checkRange fails with ErrDivergent unless every intrinsic and distortion value is finite
// and both focal lengths are positive.
func (m *CameraModel) checkRange() error {
	if m == nil || m.PinholeCameraModel == nil || m.PinholeCameraIntrinsics == nil {
		return errors.Wrap(ErrDivergent, "no camera model")
	}
	if !utils.IsFinite(m.Fx, m.Fy, m.Ppx, m.Ppy) {
		return errors.Wrapf(ErrDivergent, "camera matrix is not finite: fx=%v fy=%v cx=%v cy=%v", m.Fx, m.Fy, m.Ppx, m.Ppy)
	}
	if m.Fx <= 0 || m.Fy <= 0 {
		return errors.Wrapf(ErrDivergent, "focal lengths must be positive: fx=%v fy=%v", m.Fx, m.Fy)
	}
	if !utils.IsFinite(m.DistortionCoefficients()...) {
		return errors.Wrapf(ErrDivergent, "distortion coefficients are not finite: %v", m.DistortionCoefficients())
	}
	return nil
}
