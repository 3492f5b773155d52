package solver

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/logging"
)

// exponential fits y = a*exp(b*t) to noise free samples of a=2, b=-0.7.
func exponential() (Problem, []float64) {
	ts := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 4}
	ys := make([]float64, len(ts))
	for i, t := range ts {
		ys[i] = 2 * math.Exp(-0.7*t)
	}
	return Problem{
		NumResiduals: len(ts),
		Residuals: func(dst, x []float64) {
			for i, t := range ts {
				dst[i] = x[0]*math.Exp(x[1]*t) - ys[i]
			}
		},
	}, ts
}

func TestLevenbergMarquardtNumericJacobian(t *testing.T) {
	p, _ := exponential()
	res, err := LevenbergMarquardt(context.Background(), p, []float64{1, 0}, DefaultSettings, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeTrue)
	test.That(t, res.X[0], test.ShouldAlmostEqual, 2, 1e-6)
	test.That(t, res.X[1], test.ShouldAlmostEqual, -0.7, 1e-6)
	test.That(t, res.Cost, test.ShouldBeLessThan, 1e-12)
}

func TestLevenbergMarquardtAnalyticJacobian(t *testing.T) {
	p, ts := exponential()
	p.Jacobian = func(dst *mat.Dense, x []float64) {
		for i, t := range ts {
			e := math.Exp(x[1] * t)
			dst.Set(i, 0, e)
			dst.Set(i, 1, x[0]*t*e)
		}
	}
	res, err := LevenbergMarquardt(context.Background(), p, []float64{1, 0}, DefaultSettings, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.X[0], test.ShouldAlmostEqual, 2, 1e-6)
	test.That(t, res.X[1], test.ShouldAlmostEqual, -0.7, 1e-6)
}

func TestLevenbergMarquardtRosenbrock(t *testing.T) {
	p := Problem{
		NumResiduals: 2,
		Residuals: func(dst, x []float64) {
			dst[0] = 10 * (x[1] - x[0]*x[0])
			dst[1] = 1 - x[0]
		},
	}
	res, err := LevenbergMarquardt(context.Background(), p, []float64{-1.2, 1}, DefaultSettings, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.X[0], test.ShouldAlmostEqual, 1, 1e-5)
	test.That(t, res.X[1], test.ShouldAlmostEqual, 1, 1e-5)
}

func TestLevenbergMarquardtAlreadySolved(t *testing.T) {
	p, _ := exponential()
	res, err := LevenbergMarquardt(context.Background(), p, []float64{2, -0.7}, DefaultSettings, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeTrue)
	test.That(t, res.Cost, test.ShouldBeLessThan, 1e-20)
}

func TestLevenbergMarquardtErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	p, _ := exponential()

	_, err := LevenbergMarquardt(context.Background(), Problem{NumResiduals: 1, Residuals: p.Residuals}, []float64{1, 0}, DefaultSettings, logger)
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LevenbergMarquardt(ctx, p, []float64{1, 0}, DefaultSettings, logger)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	nan := Problem{NumResiduals: 2, Residuals: func(dst, x []float64) {
		dst[0] = math.NaN()
		dst[1] = x[0]
	}}
	_, err = LevenbergMarquardt(context.Background(), nan, []float64{1}, DefaultSettings, logger)
	test.That(t, errors.Is(err, ErrNoProgress), test.ShouldBeTrue)
}

func TestLevenbergMarquardtIterationLimit(t *testing.T) {
	p, _ := exponential()
	settings := DefaultSettings
	settings.MaxIterations = 1
	res, err := LevenbergMarquardt(context.Background(), p, []float64{1, 0}, settings, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Iterations, test.ShouldEqual, 1)
	test.That(t, res.Converged, test.ShouldBeFalse)
}
