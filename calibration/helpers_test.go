package calibration

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/rimage/transform"
	"go.viam.com/stereocalib/testutils"
)

const (
	testWidth  = 640
	testHeight = 400
)

var testSpec = pattern.Spec{Type: pattern.Chessboard, Width: 9, Height: 6, SquareSize: 25}

// syntheticCamera is a camera with known intrinsics and the exact views it sees.
type syntheticCamera struct {
	model *transform.PinholeCameraModel
	poses []testutils.Pose
	views [][]r2.Point
}

func newSyntheticCamera(spec pattern.Spec, n int, shiftX float64) *syntheticCamera {
	model := testutils.TruthModel(testWidth, testHeight)
	poses := testutils.Poses(spec, n, 2)
	for i := range poses {
		poses[i].Translation.X += shiftX
	}
	return &syntheticCamera{model: model, poses: poses, views: testutils.ProjectViews(spec, model, poses)}
}

// fakeDetector returns the view keyed by the frame id stored in the first pixel of the image.
type fakeDetector struct {
	views map[uint8][]r2.Point
	fail  map[uint8]bool
}

func newFakeDetector(views [][]r2.Point) *fakeDetector {
	fd := &fakeDetector{views: map[uint8][]r2.Point{}, fail: map[uint8]bool{}}
	for i, v := range views {
		fd.views[uint8(i+1)] = v
	}
	return fd
}

func frameID(img image.Image) uint8 {
	b := img.Bounds()
	r, _, _, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	return uint8(r >> 8)
}

func (fd *fakeDetector) Detect(img image.Image, spec pattern.Spec) ([]r2.Point, bool) {
	id := frameID(img)
	if fd.fail[id] {
		return nil, false
	}
	pts, ok := fd.views[id]
	return pts, ok
}

// stereoFrame returns a blank side by side frame carrying id in the first pixel of each half.
func stereoFrame(id uint8, width, height int) image.Image {
	img := image.NewGray(image.Rect(0, 0, 2*width, height))
	img.Pix[0] = id
	img.Pix[width] = id
	return img
}

func stereoFrames(n, width, height int) []image.Image {
	frames := make([]image.Image, n)
	for i := range frames {
		frames[i] = stereoFrame(uint8(i+1), width, height)
	}
	return frames
}

// funcSolver is a Solver backed by a function that counts its calls.
type funcSolver struct {
	mu    sync.Mutex
	calls int
	solve func(in *SolveInput) (*SolveOutput, error)
}

func (fs *funcSolver) Solve(ctx context.Context, in *SolveInput) (*SolveOutput, error) {
	fs.mu.Lock()
	fs.calls++
	fs.mu.Unlock()
	return fs.solve(in)
}

func (fs *funcSolver) Calls() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls
}

// truthSolver answers with the synthetic camera's own model and poses.
func truthSolver(cam *syntheticCamera) *funcSolver {
	return &funcSolver{solve: func(in *SolveInput) (*SolveOutput, error) {
		out := &SolveOutput{
			Intrinsics: *cam.model.PinholeCameraIntrinsics,
			Distortion: cam.model.Distortion.Parameters(),
		}
		for _, view := range in.ImagePoints {
			for i, v := range cam.views {
				if v[0] == view[0] {
					out.Rotations = append(out.Rotations, cam.poses[i].Rotation)
					out.Translations = append(out.Translations, cam.poses[i].Translation)
					break
				}
			}
		}
		return out, nil
	}}
}

// divergentSolver returns a camera matrix that fails the range check.
func divergentSolver() *funcSolver {
	return &funcSolver{solve: func(in *SolveInput) (*SolveOutput, error) {
		n := len(in.ImagePoints)
		return &SolveOutput{
			Intrinsics:   transform.PinholeCameraIntrinsics{Width: in.ImageSize.X, Height: in.ImageSize.Y, Fx: math.NaN(), Fy: 1},
			Distortion:   make([]float64, transform.NumDistortionCoefficients),
			Rotations:    make([]r3.Vector, n),
			Translations: make([]r3.Vector, n),
		}, nil
	}}
}

type recordingObserver struct {
	statuses []Status
	onStatus func(Status)
}

func (ro *recordingObserver) Observe(s Status) {
	ro.statuses = append(ro.statuses, s)
	if ro.onStatus != nil {
		ro.onStatus(s)
	}
}

type recordingSink struct {
	saved [][2]*Calibration
	err   error
}

func (rs *recordingSink) Save(ctx context.Context, left, right *Calibration) error {
	rs.saved = append(rs.saved, [2]*Calibration{left, right})
	return rs.err
}
