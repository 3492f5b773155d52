package circlegrid

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/rimage"
	"go.viam.com/stereocalib/rimage/transform"
	"go.viam.com/stereocalib/testutils"
)

var view = transform.Homography{
	{1.1, 0.05, 40},
	{-0.03, 1.1, 35},
	{0.0003, 0.0002, 1},
}

func render(t *testing.T, spec pattern.Spec, size image.Point) (*mat.Dense, []r2.Point) {
	t.Helper()
	img, err := testutils.WarpBoard(spec, &view, size, 40)
	test.That(t, err, test.ShouldBeNil)
	lum := rimage.ConvertImageToLuminanceFloat(img)
	test.That(t, rimage.NormalizeLuminance(lum), test.ShouldBeNil)

	var truth []r2.Point
	for _, p := range pattern.Positions(spec) {
		truth = append(truth, view.Apply(r2.Point{X: p.X, Y: p.Y}))
	}
	return lum, truth
}

func TestFindAsymmetricCirclesGrid(t *testing.T) {
	spec := pattern.Spec{Type: pattern.AsymmetricCirclesGrid, Width: 4, Height: 11, SquareSize: 20}
	lum, truth := render(t, spec, image.Point{260, 300})

	for _, adaptive := range []bool{true, false} {
		centers, err := FindCirclesGrid(lum, 4, 11, true, adaptive, &DefaultBlobConf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, centers, test.ShouldHaveLength, len(truth))
		for i := range truth {
			test.That(t, centers[i].Sub(truth[i]).Norm(), test.ShouldBeLessThan, 0.3)
		}
	}
}

func TestFindSymmetricCirclesGrid(t *testing.T) {
	spec := pattern.Spec{Type: pattern.CirclesGrid, Width: 4, Height: 5, SquareSize: 30}
	lum, truth := render(t, spec, image.Point{240, 260})

	centers, err := FindCirclesGrid(lum, 4, 5, false, true, &DefaultBlobConf)
	test.That(t, err, test.ShouldBeNil)
	for i := range truth {
		test.That(t, centers[i].Sub(truth[i]).Norm(), test.ShouldBeLessThan, 0.3)
	}

	_, err = FindCirclesGrid(lum, 5, 5, false, true, &DefaultBlobConf)
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)
}

func TestFindBlobs(t *testing.T) {
	m := mat.NewDense(20, 30, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return 1 }, m)
	// a 3x3 dark square, a dark line and a dark pixel touching the border
	for y := 4; y < 7; y++ {
		for x := 4; x < 7; x++ {
			m.Set(y, x, 0)
		}
	}
	for x := 10; x < 25; x++ {
		m.Set(12, x, 0)
	}
	m.Set(0, 15, 0)

	cfg := DefaultBlobConf
	blobs := FindBlobs(m, Threshold(m, false, &cfg), &cfg)
	test.That(t, blobs, test.ShouldHaveLength, 1)
	test.That(t, blobs[0].Area, test.ShouldEqual, 9)
	test.That(t, blobs[0].Centroid, test.ShouldResemble, r2.Point{X: 5, Y: 5})
	test.That(t, blobs[0].Bounds, test.ShouldResemble, image.Rect(4, 4, 7, 7))
}

func TestClosestToMedianArea(t *testing.T) {
	blobs := []Blob{{Area: 100}, {Area: 5}, {Area: 98}, {Area: 400}, {Area: 103}}
	kept := closestToMedianArea(blobs, 3)
	test.That(t, kept, test.ShouldResemble, []Blob{{Area: 100}, {Area: 98}, {Area: 103}})
}

func TestLattice(t *testing.T) {
	test.That(t, Lattice(2, 2, true), test.ShouldResemble, []r2.Point{{X: 0}, {X: 2}, {X: 1, Y: 1}, {X: 3, Y: 1}})
	test.That(t, Lattice(2, 1, false), test.ShouldResemble, []r2.Point{{X: 0}, {X: 1}})
}
