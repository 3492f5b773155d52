package transform

// InverseBrownConrady undoes a BrownConrady distortion: given distorted normalized
// coordinates it finds the undistorted ones with Newton-Raphson iterations.
type InverseBrownConrady struct {
	Forward *BrownConrady
}

// NewInverseBrownConrady takes the forward model coefficients in k1, k2, p1, p2, k3, k4, k5, k6 order.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	forward, err := NewBrownConrady(inp)
	if err != nil {
		return nil, err
	}
	return &InverseBrownConrady{forward}, nil
}

// CheckValid checks the forward model.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return InvalidDistortionError("InverseBrownConrady shaped distortion_parameters not provided")
	}
	return ibc.Forward.CheckValid()
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Parameters returns the forward model coefficients.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return ibc.Forward.Parameters()
}

// Transform maps distorted normalized coordinates (xd, yd) to undistorted ones.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc == nil || ibc.Forward == nil {
		return xd, yd
	}
	bc := ibc.Forward

	// Start with the distorted point as initial guess
	xu, yu := xd, yd

	const maxIterations = 20
	const tolerance = 1e-10

	for i := 0; i < maxIterations; i++ {
		xdEst, ydEst := bc.Transform(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		r2 := xu*xu + yu*yu
		radDist, dRad := bc.radial(r2)
		dRadDxu := 2 * xu * dRad
		dRadDyu := 2 * yu * dRad

		dxdDxu := radDist + xu*dRadDxu + 2*bc.TangentialP1*yu + 6*bc.TangentialP2*xu
		dxdDyu := xu*dRadDyu + 2*bc.TangentialP1*xu + 2*bc.TangentialP2*yu
		dydDxu := yu*dRadDxu + 2*bc.TangentialP1*xu + 2*bc.TangentialP2*yu
		dydDyu := radDist + yu*dRadDyu + 6*bc.TangentialP1*yu + 2*bc.TangentialP2*xu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			break
		}

		// [xu, yu] -= J^-1 * [errX, errY]
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}

	return xu, yu
}
