package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// getCrossProductMatFromPoint returns the matrix [p]x such that [p]x v = p × v.
func getCrossProductMatFromPoint(p r3.Vector) *mat.Dense {
	cross := mat.NewDense(3, 3, nil)
	cross.Set(0, 1, -p.Z)
	cross.Set(0, 2, p.Y)
	cross.Set(1, 0, p.Z)
	cross.Set(1, 2, -p.X)
	cross.Set(2, 0, -p.Y)
	cross.Set(2, 1, p.X)
	return cross
}

// RodriguesToRotation converts an axis-angle vector (direction = axis, norm = angle in
// radians) to a 3x3 rotation matrix.
func RodriguesToRotation(rvec r3.Vector) *mat.Dense {
	theta := rvec.Norm()
	rot := eye(3)
	if theta < 1e-12 {
		rot.Add(rot, getCrossProductMatFromPoint(rvec))
		return rot
	}
	k := rvec.Mul(1 / theta)
	kk := mat.NewDense(3, 3, []float64{
		k.X * k.X, k.X * k.Y, k.X * k.Z,
		k.Y * k.X, k.Y * k.Y, k.Y * k.Z,
		k.Z * k.X, k.Z * k.Y, k.Z * k.Z,
	})
	cross := getCrossProductMatFromPoint(k)
	c, s := math.Cos(theta), math.Sin(theta)
	rot.Scale(c, rot)
	kk.Scale(1-c, kk)
	cross.Scale(s, cross)
	rot.Add(rot, kk)
	rot.Add(rot, cross)
	return rot
}

// RotationToRodrigues converts a 3x3 rotation matrix to its axis-angle vector.
func RotationToRodrigues(rot mat.Matrix) r3.Vector {
	trace := rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2)
	cosTheta := math.Max(-1, math.Min(1, (trace-1)/2))
	theta := math.Acos(cosTheta)
	axis := r3.Vector{
		X: rot.At(2, 1) - rot.At(1, 2),
		Y: rot.At(0, 2) - rot.At(2, 0),
		Z: rot.At(1, 0) - rot.At(0, 1),
	}
	sinTheta := math.Sin(theta)
	switch {
	case theta < 1e-12:
		return axis.Mul(0.5)
	case sinTheta > 1e-6:
		return axis.Mul(theta / (2 * sinTheta))
	}
	// theta close to pi: R = 2kkᵀ - I, so take the largest column of (R + I)/2.
	best, bestNorm := r3.Vector{}, -1.
	for col := 0; col < 3; col++ {
		v := r3.Vector{X: rot.At(0, col), Y: rot.At(1, col), Z: rot.At(2, col)}
		switch col {
		case 0:
			v.X++
		case 1:
			v.Y++
		default:
			v.Z++
		}
		if n := v.Norm(); n > bestNorm {
			best, bestNorm = v, n
		}
	}
	k := best.Normalize()
	// keep the sign consistent with the antisymmetric part when it carries information
	if k.Dot(axis) < 0 {
		k = k.Mul(-1)
	}
	return k.Mul(theta)
}

// RotatePoint applies rotation matrix rot to p.
func RotatePoint(rot mat.Matrix, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: rot.At(0, 0)*p.X + rot.At(0, 1)*p.Y + rot.At(0, 2)*p.Z,
		Y: rot.At(1, 0)*p.X + rot.At(1, 1)*p.Y + rot.At(1, 2)*p.Z,
		Z: rot.At(2, 0)*p.X + rot.At(2, 1)*p.Y + rot.At(2, 2)*p.Z,
	}
}

// ProjectPoints projects target points through the pose (rvec, tvec) and the camera model.
func ProjectPoints(objectPoints []r3.Vector, rvec, tvec r3.Vector, model *PinholeCameraModel) []r2.Point {
	rot := RodriguesToRotation(rvec)
	out := make([]r2.Point, len(objectPoints))
	for i, p := range objectPoints {
		out[i] = model.ProjectPoint(RotatePoint(rot, p).Add(tvec))
	}
	return out
}
