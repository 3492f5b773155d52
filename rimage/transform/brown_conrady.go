package transform

import (
	"math"

	"github.com/pkg/errors"
)

// NumDistortionCoefficients is the size of the rational Brown-Conrady coefficient vector.
const NumDistortionCoefficients = 8

// BrownConrady is the rational radial plus tangential lens model. Parameters are ordered
// k1, k2, p1, p2, k3, k4, k5, k6; with k4 = k5 = k6 = 0 it reduces to the classic five
// coefficient model.
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
	RadialK3     float64 `json:"rk3"`
	RadialK4     float64 `json:"rk4"`
	RadialK5     float64 `json:"rk5"`
	RadialK6     float64 `json:"rk6"`
}

// NewBrownConrady takes in a slice of up to eight floats in k1, k2, p1, p2, k3, k4, k5, k6
// order. Missing trailing values are zero.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > NumDistortionCoefficients {
		return nil, errors.Errorf("list of parameters too long, expected max %d, got %d", NumDistortionCoefficients, len(inp))
	}
	padded := make([]float64, NumDistortionCoefficients)
	copy(padded, inp)
	return &BrownConrady{padded[0], padded[1], padded[2], padded[3], padded[4], padded[5], padded[6], padded[7]}, nil
}

// CheckValid checks that the model exists and every coefficient is finite.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	for i, p := range bc.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("coefficient " + coefficientNames[i] + " is not finite")
		}
	}
	return nil
}

var coefficientNames = [NumDistortionCoefficients]string{"k1", "k2", "p1", "p2", "k3", "k4", "k5", "k6"}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the coefficients in k1, k2, p1, p2, k3, k4, k5, k6 order.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{
		bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2,
		bc.RadialK3, bc.RadialK4, bc.RadialK5, bc.RadialK6,
	}
}

// radial returns the rational radial factor and its derivative with respect to r².
func (bc *BrownConrady) radial(r2 float64) (float64, float64) {
	r4 := r2 * r2
	num := 1 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r4*r2
	den := 1 + bc.RadialK4*r2 + bc.RadialK5*r4 + bc.RadialK6*r4*r2
	dNum := bc.RadialK1 + 2*bc.RadialK2*r2 + 3*bc.RadialK3*r4
	dDen := bc.RadialK4 + 2*bc.RadialK5*r2 + 3*bc.RadialK6*r4
	return num / den, (dNum*den - num*dDen) / (den * den)
}

// Transform distorts normalized image coordinates (x, y).
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	radDist, _ := bc.radial(r2)
	xd := x*radDist + 2*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2*x*x)
	yd := y*radDist + bc.TangentialP1*(r2+2*y*y) + 2*bc.TangentialP2*x*y
	return xd, yd
}
