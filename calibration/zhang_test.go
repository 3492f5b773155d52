package calibration

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage/transform"
	"go.viam.com/stereocalib/testutils"
)

func solveSynthetic(t *testing.T, cam *syntheticCamera, flags Flags) *SolveOutput {
	t.Helper()
	in := &SolveInput{
		ObjectPoints:   pattern.Positions(testSpec),
		ImagePoints:    cam.views,
		ImageSize:      image.Point{testWidth, testHeight},
		Flags:          flags,
		Seed:           transform.PinholeCameraIntrinsics{Width: testWidth, Height: testHeight, Fx: 1, Fy: 1},
		SeedDistortion: make([]float64, transform.NumDistortionCoefficients),
	}
	out, err := NewZhangSolver(logging.NewTestLogger(t)).Solve(context.Background(), in)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Rotations, test.ShouldHaveLength, len(cam.views))
	test.That(t, out.Translations, test.ShouldHaveLength, len(cam.views))
	return out
}

func TestZhangRoundTrip(t *testing.T) {
	cam := newSyntheticCamera(testSpec, 6, 0)
	out := solveSynthetic(t, cam, Flags{})

	test.That(t, out.RMS, test.ShouldBeLessThan, 1e-3)
	truth := cam.model.PinholeCameraIntrinsics
	test.That(t, out.Intrinsics.Fx, test.ShouldAlmostEqual, truth.Fx, 0.5)
	test.That(t, out.Intrinsics.Fy, test.ShouldAlmostEqual, truth.Fy, 0.5)
	test.That(t, out.Intrinsics.Ppx, test.ShouldAlmostEqual, truth.Ppx, 0.5)
	test.That(t, out.Intrinsics.Ppy, test.ShouldAlmostEqual, truth.Ppy, 0.5)
	test.That(t, out.Distortion[0], test.ShouldAlmostEqual, -0.12, 0.01)
	test.That(t, out.Distortion[5:], test.ShouldResemble, []float64{0, 0, 0})

	model := &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: &out.Intrinsics,
		Distortion:              &transform.BrownConrady{},
	}
	bc, err := transform.NewBrownConrady(out.Distortion)
	test.That(t, err, test.ShouldBeNil)
	model.Distortion = bc
	report, err := Score(pattern.Positions(testSpec), cam.views, out.Rotations, out.Translations, model)
	test.That(t, err, test.ShouldBeNil)
	for _, e := range report.PerView {
		test.That(t, e, test.ShouldBeLessThan, 1e-3)
	}
	for i, pose := range cam.poses {
		test.That(t, out.Translations[i].Sub(pose.Translation).Norm(), test.ShouldBeLessThan, 1)
		test.That(t, out.Rotations[i].Sub(pose.Rotation).Norm(), test.ShouldBeLessThan, 1e-2)
	}
}

func TestZhangFlags(t *testing.T) {
	cam := newSyntheticCamera(testSpec, 5, 0)

	t.Run("fix aspect ratio", func(t *testing.T) {
		out := solveSynthetic(t, cam, Flags{FixAspectRatio: true})
		test.That(t, out.Intrinsics.Fx, test.ShouldEqual, out.Intrinsics.Fy)
	})

	t.Run("fix principal point", func(t *testing.T) {
		out := solveSynthetic(t, cam, Flags{FixPrincipalPoint: true})
		test.That(t, out.Intrinsics.Ppx, test.ShouldEqual, float64(testWidth-1)/2)
		test.That(t, out.Intrinsics.Ppy, test.ShouldEqual, float64(testHeight-1)/2)
	})

	t.Run("zero tangential distortion", func(t *testing.T) {
		out := solveSynthetic(t, cam, Flags{ZeroTangentDist: true})
		test.That(t, out.Distortion[2], test.ShouldEqual, 0.)
		test.That(t, out.Distortion[3], test.ShouldEqual, 0.)
	})
}

func TestZhangCancelled(t *testing.T) {
	cam := newSyntheticCamera(testSpec, 3, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewZhangSolver(logging.NewTestLogger(t)).Solve(ctx, &SolveInput{
		ObjectPoints:   pattern.Positions(testSpec),
		ImagePoints:    cam.views,
		ImageSize:      image.Point{testWidth, testHeight},
		SeedDistortion: make([]float64, transform.NumDistortionCoefficients),
	})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestInitFocalLengths(t *testing.T) {
	truth := &transform.PinholeCameraIntrinsics{Width: testWidth, Height: testHeight, Fx: 520, Fy: 515, Ppx: 322, Ppy: 198}
	poses := testutils.Poses(testSpec, 4, 2)
	hs := make([]*transform.Homography, len(poses))
	for i, p := range poses {
		hs[i] = testutils.PoseHomography(truth, p)
	}
	size := image.Point{testWidth, testHeight}

	fx, fy := initFocalLengths(hs, truth.Ppx, truth.Ppy, 0, size)
	test.That(t, fx, test.ShouldAlmostEqual, 520, 1e-3)
	test.That(t, fy, test.ShouldAlmostEqual, 515, 1e-3)

	fx, fy = initFocalLengths(hs, truth.Ppx, truth.Ppy, 1, size)
	test.That(t, fx, test.ShouldEqual, fy)
	test.That(t, fx, test.ShouldAlmostEqual, 517.5, 1e-3)

	rvec, tvec := initPose(hs[1], truth.Fx, truth.Fy, truth.Ppx, truth.Ppy)
	test.That(t, rvec.Sub(poses[1].Rotation).Norm(), test.ShouldBeLessThan, 1e-6)
	test.That(t, tvec.Sub(poses[1].Translation).Norm(), test.ShouldBeLessThan, 1e-6)

	// a single fronto-parallel view constrains nothing
	flat := testutils.PoseHomography(truth, testutils.Pose{Translation: poses[0].Translation})
	fx, fy = initFocalLengths([]*transform.Homography{flat}, truth.Ppx, truth.Ppy, 0, size)
	test.That(t, fx, test.ShouldEqual, float64(testWidth))
	test.That(t, fy, test.ShouldEqual, float64(testWidth))
}

func TestParameterLayout(t *testing.T) {
	template := make([]float64, numIntrinsicParams+numPoseParams)
	for i := range template {
		template[i] = float64(i + 1)
	}

	free := newParameterLayout(template, Flags{}, 0)
	test.That(t, free.pack(), test.ShouldHaveLength, numIntrinsicParams-3+numPoseParams)
	test.That(t, free.expand(free.pack()), test.ShouldResemble, template)

	all := newParameterLayout(template, Flags{FixAspectRatio: true, FixPrincipalPoint: true, ZeroTangentDist: true}, 2)
	x := all.pack()
	// fy, k1, k2, k3 and the pose
	test.That(t, x, test.ShouldHaveLength, 4+numPoseParams)
	test.That(t, x[0], test.ShouldEqual, template[idxFy])
	x[0] = 10
	p := all.expand(x)
	test.That(t, p[idxFy], test.ShouldEqual, 10.)
	test.That(t, p[idxFx], test.ShouldEqual, 20.)
	test.That(t, p[idxP1], test.ShouldEqual, 0.)
	test.That(t, p[idxP2], test.ShouldEqual, 0.)
	test.That(t, p[idxCx], test.ShouldEqual, template[idxCx])
	test.That(t, p[idxK4], test.ShouldEqual, template[idxK4])
}
