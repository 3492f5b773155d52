package calibration

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/logging"
)

func TestCameraSession(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()
	cam := newSyntheticCamera(testSpec, 3, 0)
	detector := newFakeDetector(cam.views)

	_, err := NewCameraSession("left", pattern.Spec{Type: pattern.Chessboard, Width: 0, Height: 6, SquareSize: 25},
		detector, NewEstimator(truthSolver(cam), logger), logger)
	test.That(t, errors.Is(err, pattern.ErrInvalidPatternSpec), test.ShouldBeTrue)
	_, err = NewCameraSession("left", testSpec, nil, NewEstimator(truthSolver(cam), logger), logger)
	test.That(t, err, test.ShouldNotBeNil)

	cs, err := NewCameraSession("left", testSpec, detector, NewEstimator(truthSolver(cam), logger), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cs.Name(), test.ShouldEqual, "left")
	test.That(t, cs.ObjectPoints(), test.ShouldResemble, pattern.Positions(testSpec))
	test.That(t, cs.Last(), test.ShouldBeNil)

	size := image.Point{testWidth, testHeight}
	_, err = cs.Calibrate(ctx, size, Flags{})
	test.That(t, errors.Is(err, ErrNoViews), test.ShouldBeTrue)

	for i := 1; i <= 4; i++ {
		pts, found := cs.Detect(stereoFrame(uint8(i), testWidth, testHeight))
		if i == 4 {
			test.That(t, found, test.ShouldBeFalse)
			continue
		}
		test.That(t, found, test.ShouldBeTrue)
		cs.Accept(pts)
	}
	test.That(t, cs.Count(), test.ShouldEqual, 3)

	cal, err := cs.Calibrate(ctx, size, Flags{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal.ImageSize, test.ShouldResemble, size)
	test.That(t, cal.ImagePoints, test.ShouldResemble, cam.views)
	test.That(t, cal.Report.PerView, test.ShouldHaveLength, 3)
	test.That(t, cal.Report.RMS, test.ShouldBeLessThan, 1e-9)
	test.That(t, cs.Last(), test.ShouldBeNil)

	cs.Commit(cal)
	test.That(t, cs.Last(), test.ShouldEqual, cal)
	cs.Reset()
	test.That(t, cs.Count(), test.ShouldEqual, 0)
	test.That(t, cs.Last(), test.ShouldEqual, cal)
}
