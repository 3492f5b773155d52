package chessboard

import (
	"image"
	"image/color"
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

var (
	board = pattern.Spec{Type: pattern.Chessboard, Width: 9, Height: 6, SquareSize: 25}
	view  = transform.Homography{
		{1.2, 0.1, 70},
		{-0.05, 1.15, 70},
		{0.0002, 0.0001, 1},
	}
)

func truthCorners() []r2.Point {
	var out []r2.Point
	for _, p := range pattern.Positions(board) {
		out = append(out, view.Apply(r2.Point{X: p.X, Y: p.Y}))
	}
	return out
}

func boardImage(t *testing.T) *image.Gray {
	t.Helper()
	img, err := testutils.WarpBoard(board, &view, image.Point{400, 300}, 40)
	test.That(t, err, test.ShouldBeNil)
	return img
}

func TestFindChessboard(t *testing.T) {
	img := boardImage(t)
	lum := rimage.ConvertImageToLuminanceFloat(img)
	test.That(t, rimage.NormalizeLuminance(lum), test.ShouldBeNil)

	corners, err := FindChessboard(lum, board.Width, board.Height, &DefaultDetectionConf)
	test.That(t, err, test.ShouldBeNil)
	truth := truthCorners()
	test.That(t, corners, test.ShouldHaveLength, len(truth))
	for i := range truth {
		test.That(t, corners[i].Sub(truth[i]).Norm(), test.ShouldBeLessThan, 1.5)
	}

	test.That(t, FastCheck(img, board.NumPoints(), &DefaultDetectionConf), test.ShouldBeTrue)
}

func TestFindChessboardNotFound(t *testing.T) {
	lum := rimage.ConvertImageToLuminanceFloat(boardImage(t))
	_, err := FindChessboard(lum, 20, 15, &DefaultDetectionConf)
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)

	blank := mat.NewDense(100, 100, nil)
	_, err = FindChessboard(blank, board.Width, board.Height, &DefaultDetectionConf)
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)
}

func TestFastCheckBlank(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 200, 100))
	for i := range blank.Pix {
		blank.Pix[i] = 200
	}
	blank.SetGray(50, 50, color.Gray{Y: 0})
	test.That(t, FastCheck(blank, 54, &DefaultDetectionConf), test.ShouldBeFalse)
	test.That(t, FastCheck(image.NewGray(image.Rect(0, 0, 2, 2)), 54, &DefaultDetectionConf), test.ShouldBeFalse)
}

func TestNonMaxSuppression(t *testing.T) {
	m := mat.NewDense(30, 30, nil)
	m.Set(10, 5, 3)
	m.Set(11, 6, 2)
	m.Set(20, 25, 5)
	// a plateau keeps only its first pixel
	m.Set(2, 20, 1)
	m.Set(2, 21, 1)

	saddles := NonMaxSuppression(m, 3, 0.5)
	test.That(t, saddles, test.ShouldResemble, []Saddle{
		{Point: r2.Point{X: 25, Y: 20}, Score: 5},
		{Point: r2.Point{X: 5, Y: 10}, Score: 3},
		{Point: r2.Point{X: 20, Y: 2}, Score: 1},
	})
	test.That(t, NonMaxSuppression(m, 3, 4), test.ShouldHaveLength, 1)
}

func TestSaddleResponse(t *testing.T) {
	img := boardImage(t)
	lum := rimage.ConvertImageToLuminanceFloat(img)
	saddleMap, saddles, err := GetSaddleMapPoints(lum, &DefaultSaddleConf)
	test.That(t, err, test.ShouldBeNil)
	rows, cols := saddleMap.Dims()
	test.That(t, rows, test.ShouldEqual, 300)
	test.That(t, cols, test.ShouldEqual, 400)
	test.That(t, mat.Min(saddleMap), test.ShouldBeGreaterThanOrEqualTo, 0)
	test.That(t, len(saddles), test.ShouldBeGreaterThanOrEqualTo, board.NumPoints())
	// flat paper far from the board has no response
	test.That(t, saddleMap.At(5, 5), test.ShouldEqual, 0)
}
