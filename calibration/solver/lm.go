// Package solver minimizes sums of squared residuals with the Levenberg-Marquardt method.
package solver

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/logging"
)

// ErrNoProgress is returned when the initial residuals are not finite.
var ErrNoProgress = errors.New("residuals are not finite at the starting point")

// Problem is a nonlinear least squares problem in len(x) parameters.
type Problem struct {
	NumResiduals int
	// Residuals writes the residuals at x into dst. It may be called concurrently.
	Residuals func(dst, x []float64)
	// Jacobian writes the NumResiduals x len(x) Jacobian at x into dst. When nil it is
	// estimated by central differences.
	Jacobian func(dst *mat.Dense, x []float64)
}

// Settings are the termination criteria of the optimization.
type Settings struct {
	MaxIterations int
	// InitialDamping scales the diagonal of the normal equations on the first iteration.
	InitialDamping float64
	// CostTolerance stops once an accepted step lowers the cost by less than this fraction.
	CostTolerance float64
	// StepTolerance stops once an accepted step is shorter than this fraction of the parameters.
	StepTolerance float64
}

// DefaultSettings are suitable for camera calibration sized problems.
var DefaultSettings = Settings{
	MaxIterations:  100,
	InitialDamping: 1e-3,
	CostTolerance:  1e-12,
	StepTolerance:  1e-12,
}

const (
	maxDamping = 1e16
	minDamping = 1e-15
)

// Result is the outcome of an optimization.
type Result struct {
	X          []float64
	Cost       float64 // sum of squared residuals at X
	Iterations int
	Converged  bool
}

func sumOfSquares(r []float64) float64 {
	cost := floats.Dot(r, r)
	if math.IsNaN(cost) {
		return math.Inf(1)
	}
	return cost
}

// LevenbergMarquardt minimizes the problem's cost starting from x0. Reaching MaxIterations is
// not an error; Converged reports whether a tolerance was met instead.
func LevenbergMarquardt(
	ctx context.Context,
	p Problem,
	x0 []float64,
	settings Settings,
	logger logging.Logger,
) (*Result, error) {
	n, m := len(x0), p.NumResiduals
	if n == 0 || m < n {
		return nil, errors.Errorf("need at least as many residuals as parameters, have %d for %d", m, n)
	}
	jacobian := p.Jacobian
	if jacobian == nil {
		jacobian = func(dst *mat.Dense, x []float64) {
			fd.Jacobian(dst, p.Residuals, x, &fd.JacobianSettings{Formula: fd.Central, Concurrent: true})
		}
	}

	x := append([]float64(nil), x0...)
	r := make([]float64, m)
	p.Residuals(r, x)
	cost := sumOfSquares(r)
	if math.IsInf(cost, 1) {
		return nil, ErrNoProgress
	}

	res := &Result{X: x, Cost: cost}
	damping := settings.InitialDamping
	j := mat.NewDense(m, n, nil)
	xNew := make([]float64, n)
	rNew := make([]float64, m)
	var jtj mat.SymDense
	var grad mat.VecDense
	var step mat.VecDense
	lhs := mat.NewSymDense(n, nil)
	var chol mat.Cholesky

	for res.Iterations < settings.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cost == 0 {
			res.Converged = true
			break
		}
		res.Iterations++

		jacobian(j, x)
		jtj.SymOuterK(1, j.T())
		grad.MulVec(j.T(), mat.NewVecDense(m, r))
		grad.ScaleVec(-1, &grad)

		accepted := false
		for !accepted {
			lhs.CopySym(&jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				lhs.SetSym(i, i, d+damping*math.Max(d, 1e-12))
			}
			if ok := chol.Factorize(lhs); !ok {
				damping *= 10
				if damping > maxDamping {
					break
				}
				continue
			}
			if err := chol.SolveVecTo(&step, &grad); err != nil {
				damping *= 10
				if damping > maxDamping {
					break
				}
				continue
			}

			for i := range xNew {
				xNew[i] = x[i] + step.AtVec(i)
			}
			p.Residuals(rNew, xNew)
			newCost := sumOfSquares(rNew)
			if newCost >= cost {
				damping *= 10
				if damping > maxDamping {
					break
				}
				continue
			}

			accepted = true
			stepNorm := floats.Norm(step.RawVector().Data, 2)
			paramNorm := floats.Norm(x, 2)
			decrease := cost - newCost
			copy(x, xNew)
			copy(r, rNew)
			cost = newCost
			damping = math.Max(damping/10, minDamping)

			logger.Debugw("levenberg-marquardt step", "iteration", res.Iterations, "cost", cost, "damping", damping)
			if decrease <= settings.CostTolerance*(cost+decrease) ||
				stepNorm <= settings.StepTolerance*(paramNorm+settings.StepTolerance) {
				res.Converged = true
			}
		}
		if !accepted {
			// no downhill step exists at any damping, so x is a local minimum
			res.Converged = true
		}
		if res.Converged {
			break
		}
	}
	res.Cost = cost
	return res, nil
}
