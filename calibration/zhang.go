package calibration

import (
	"context"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/calibration/solver"
	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage/transform"
	"go.viam.com/stereocalib/utils"
)

// Parameter vector layout: the intrinsics and distortion, then six pose values per view.
const (
	idxFx = iota
	idxFy
	idxCx
	idxCy
	idxK1
	idxK2
	idxP1
	idxP2
	idxK3
	idxK4
	idxK5
	idxK6
	numIntrinsicParams
)

const numPoseParams = 6

// ZhangSolver calibrates a camera from views of a planar target. Focal lengths and poses are
// initialized in closed form from the per view homographies, then every free parameter is
// refined jointly by Levenberg-Marquardt.
type ZhangSolver struct {
	Settings solver.Settings
	logger   logging.Logger
}

// NewZhangSolver returns a solver with the default optimizer settings.
func NewZhangSolver(logger logging.Logger) *ZhangSolver {
	return &ZhangSolver{Settings: solver.DefaultSettings, logger: logger}
}

// Solve implements Solver.
func (zs *ZhangSolver) Solve(ctx context.Context, in *SolveInput) (*SolveOutput, error) {
	numViews := len(in.ImagePoints)
	if numViews == 0 {
		return nil, ErrNoViews
	}
	planar := make([]r2.Point, len(in.ObjectPoints))
	for i, p := range in.ObjectPoints {
		planar[i] = r2.Point{X: p.X, Y: p.Y}
	}
	homographies := make([]*transform.Homography, numViews)
	for i, view := range in.ImagePoints {
		h, err := transform.EstimateHomography(planar, view)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot fit homography of view %d", i)
		}
		homographies[i] = h
	}

	aspect := 0.
	if in.Flags.FixAspectRatio {
		aspect = in.Seed.Fx / in.Seed.Fy
		if !utils.IsFinite(aspect) || aspect <= 0 {
			aspect = 1
		}
	}
	cx := float64(in.ImageSize.X-1) / 2
	cy := float64(in.ImageSize.Y-1) / 2
	fx, fy := initFocalLengths(homographies, cx, cy, aspect, in.ImageSize)
	zs.logger.Debugw("initial intrinsics", "fx", fx, "fy", fy, "cx", cx, "cy", cy)

	params := make([]float64, numIntrinsicParams+numPoseParams*numViews)
	params[idxFx], params[idxFy], params[idxCx], params[idxCy] = fx, fy, cx, cy
	copy(params[idxK1:numIntrinsicParams], in.SeedDistortion)
	for i, h := range homographies {
		rvec, tvec := initPose(h, fx, fy, cx, cy)
		base := numIntrinsicParams + numPoseParams*i
		params[base], params[base+1], params[base+2] = rvec.X, rvec.Y, rvec.Z
		params[base+3], params[base+4], params[base+5] = tvec.X, tvec.Y, tvec.Z
	}

	layout := newParameterLayout(params, in.Flags, aspect)
	numPoints := numViews * len(in.ObjectPoints)
	problem := solver.Problem{
		NumResiduals: 2 * numPoints,
		Residuals: func(dst, x []float64) {
			p := layout.expand(x)
			model := modelFromParams(p, in.ImageSize)
			k := 0
			for v, view := range in.ImagePoints {
				rvec, tvec := poseFromParams(p, v)
				projected := transform.ProjectPoints(in.ObjectPoints, rvec, tvec, model)
				for j, obs := range view {
					dst[k] = projected[j].X - obs.X
					dst[k+1] = projected[j].Y - obs.Y
					k += 2
				}
			}
		},
	}
	res, err := solver.LevenbergMarquardt(ctx, problem, layout.pack(), zs.Settings, zs.logger)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(ErrDivergent, err.Error())
	}
	zs.logger.Debugw("optimization finished", "iterations", res.Iterations, "converged", res.Converged)

	p := layout.expand(res.X)
	model := modelFromParams(p, in.ImageSize)
	out := &SolveOutput{
		Intrinsics:   *model.PinholeCameraIntrinsics,
		Distortion:   model.Distortion.Parameters(),
		Rotations:    make([]r3.Vector, numViews),
		Translations: make([]r3.Vector, numViews),
		RMS:          math.Sqrt(res.Cost / float64(numPoints)),
	}
	for v := range in.ImagePoints {
		out.Rotations[v], out.Translations[v] = poseFromParams(p, v)
	}
	return out, nil
}

// initFocalLengths solves the two orthogonality constraints each homography puts on the image
// of the absolute conic, with the principal point known and no skew. Degenerate inputs, such
// as only fronto-parallel views, fall back to the larger image dimension.
func initFocalLengths(hs []*transform.Homography, cx, cy, aspect float64, size image.Point) (float64, float64) {
	a := mat.NewDense(2*len(hs), 2, nil)
	b := mat.NewVecDense(2*len(hs), nil)
	for i, h := range hs {
		var col0, col1, d1, d2 [3]float64
		var norms [4]float64
		for j := 0; j < 3; j++ {
			// translate the principal point to the origin
			t0, t1 := h[j][0], h[j][1]
			switch j {
			case 0:
				t0, t1 = t0-cx*h[2][0], t1-cx*h[2][1]
			case 1:
				t0, t1 = t0-cy*h[2][0], t1-cy*h[2][1]
			}
			col0[j], col1[j] = t0, t1
			d1[j], d2[j] = (t0+t1)/2, (t0-t1)/2
			norms[0] += t0 * t0
			norms[1] += t1 * t1
			norms[2] += d1[j] * d1[j]
			norms[3] += d2[j] * d2[j]
		}
		for j := 0; j < 3; j++ {
			col0[j] /= math.Sqrt(norms[0])
			col1[j] /= math.Sqrt(norms[1])
			d1[j] /= math.Sqrt(norms[2])
			d2[j] /= math.Sqrt(norms[3])
		}
		a.Set(2*i, 0, col0[0]*col1[0])
		a.Set(2*i, 1, col0[1]*col1[1])
		b.SetVec(2*i, -col0[2]*col1[2])
		a.Set(2*i+1, 0, d1[0]*d2[0])
		a.Set(2*i+1, 1, d1[1]*d2[1])
		b.SetVec(2*i+1, -d1[2]*d2[2])
	}

	fallback := float64(size.X)
	if size.Y > size.X {
		fallback = float64(size.Y)
	}
	fx, fy := fallback, fallback
	var f mat.VecDense
	err := f.SolveVec(a, b)
	if _, isCondition := err.(mat.Condition); (err == nil || isCondition) && f.Len() == 2 {
		sx, sy := math.Sqrt(math.Abs(1/f.AtVec(0))), math.Sqrt(math.Abs(1/f.AtVec(1)))
		if utils.IsFinite(sx, sy) && sx > 0 && sy > 0 {
			fx, fy = sx, sy
		}
	}
	if aspect > 0 {
		tf := (fx + fy) / (aspect + 1)
		fx, fy = aspect*tf, tf
	}
	return fx, fy
}

// initPose recovers the target pose from K^-1 H, keeping the target in front of the camera.
func initPose(h *transform.Homography, fx, fy, cx, cy float64) (r3.Vector, r3.Vector) {
	column := func(c int) r3.Vector {
		return r3.Vector{
			X: (h[0][c] - cx*h[2][c]) / fx,
			Y: (h[1][c] - cy*h[2][c]) / fy,
			Z: h[2][c],
		}
	}
	b1, b2, b3 := column(0), column(1), column(2)
	scale := 2 / (b1.Norm() + b2.Norm())
	c1, c2, t := b1.Mul(scale), b2.Mul(scale), b3.Mul(scale)
	if t.Z < 0 {
		c1, c2, t = c1.Mul(-1), c2.Mul(-1), t.Mul(-1)
	}
	c3 := c1.Cross(c2)
	rot := mat.NewDense(3, 3, []float64{
		c1.X, c2.X, c3.X,
		c1.Y, c2.Y, c3.Y,
		c1.Z, c2.Z, c3.Z,
	})
	return transform.RotationToRodrigues(transform.NearestRotation(rot)), t
}

func modelFromParams(p []float64, size image.Point) *transform.PinholeCameraModel {
	return &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: &transform.PinholeCameraIntrinsics{
			Width:  size.X,
			Height: size.Y,
			Fx:     p[idxFx],
			Fy:     p[idxFy],
			Ppx:    p[idxCx],
			Ppy:    p[idxCy],
		},
		Distortion: &transform.BrownConrady{
			RadialK1:     p[idxK1],
			RadialK2:     p[idxK2],
			TangentialP1: p[idxP1],
			TangentialP2: p[idxP2],
			RadialK3:     p[idxK3],
			RadialK4:     p[idxK4],
			RadialK5:     p[idxK5],
			RadialK6:     p[idxK6],
		},
	}
}

func poseFromParams(p []float64, view int) (r3.Vector, r3.Vector) {
	base := numIntrinsicParams + numPoseParams*view
	return r3.Vector{X: p[base], Y: p[base+1], Z: p[base+2]},
		r3.Vector{X: p[base+3], Y: p[base+4], Z: p[base+5]}
}

// parameterLayout maps the optimizer's free variables onto the full parameter vector.
type parameterLayout struct {
	template []float64
	free     []int
	// aspect ties fx to aspect*fy when positive.
	aspect float64
}

func newParameterLayout(template []float64, flags Flags, aspect float64) *parameterLayout {
	fixed := map[int]bool{idxK6: true}
	if flags.FixK4() {
		fixed[idxK4] = true
	}
	if flags.FixK5() {
		fixed[idxK5] = true
	}
	if flags.FixAspectRatio {
		fixed[idxFx] = true
	}
	if flags.FixPrincipalPoint {
		fixed[idxCx], fixed[idxCy] = true, true
	}
	l := &parameterLayout{template: append([]float64(nil), template...), aspect: aspect}
	if flags.ZeroTangentDist {
		fixed[idxP1], fixed[idxP2] = true, true
		l.template[idxP1], l.template[idxP2] = 0, 0
	}
	for i := range l.template {
		if !fixed[i] {
			l.free = append(l.free, i)
		}
	}
	return l
}

// pack returns the free variables of the template.
func (l *parameterLayout) pack() []float64 {
	x := make([]float64, len(l.free))
	for i, idx := range l.free {
		x[i] = l.template[idx]
	}
	return x
}

// expand returns the full parameter vector for free variables x.
func (l *parameterLayout) expand(x []float64) []float64 {
	p := append([]float64(nil), l.template...)
	for i, idx := range l.free {
		p[idx] = x[i]
	}
	if l.aspect > 0 {
		p[idxFx] = l.aspect * p[idxFy]
	}
	return p
}
