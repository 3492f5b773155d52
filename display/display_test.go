package display

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/stereocalib/calibration"
	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage"
	"go.viam.com/stereocalib/testutils"
)

func whiteHalf() image.Image {
	return imaging.New(64, 48, color.White)
}

func testStatus() calibration.Status {
	return calibration.Status{
		Mode:        calibration.Capturing,
		FrameIndex:  3,
		Left:        whiteHalf(),
		Right:       whiteHalf(),
		LeftPoints:  []r2.Point{{X: 20, Y: 20}, {X: 30, Y: 20}, {X: 20, Y: 30}, {X: 30, Y: 30}},
		RightPoints: []r2.Point{{X: 10, Y: 20}, {X: 20, Y: 20}, {X: 10, Y: 30}, {X: 20, Y: 30}},
		LeftFound:   true,
		RightFound:  true,
		RowLength:   2,
		Views:       2,
		Target:      13,
	}
}

func calibrationFor(width, height int) *calibration.Calibration {
	return &calibration.Calibration{
		Model:     &calibration.CameraModel{PinholeCameraModel: testutils.TruthModel(width, height)},
		Report:    calibration.ReprojectionReport{PerView: []float64{0.1, 0.4, 0.2}, RMS: 0.26},
		ImageSize: image.Point{X: width, Y: height},
	}
}

func red(img image.Image, x, y int) int {
	r, _, _, _ := img.At(x, y).RGBA()
	return int(r >> 8)
}

func TestAnnotate(t *testing.T) {
	s := testStatus()
	img, err := Annotate(s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Size(), test.ShouldResemble, image.Point{128, 48})
	test.That(t, red(img, 1, 1), test.ShouldEqual, 255)

	// live acceptance blinks
	s.Accepted = true
	s.Live = true
	img, err = Annotate(s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, red(img, 1, 1), test.ShouldEqual, 0)

	// image lists do not
	s.Live = false
	img, err = Annotate(s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, red(img, 1, 1), test.ShouldEqual, 255)

	_, err = Annotate(calibration.Status{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAnnotateUndistorted(t *testing.T) {
	s := testStatus()
	s.Mode = calibration.Calibrated
	s.ShowUndistorted = true
	s.LeftCalibration = calibrationFor(64, 48)
	s.RightCalibration = calibrationFor(64, 48)
	img, err := Annotate(s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Size(), test.ShouldResemble, image.Point{128, 48})

	s.RightCalibration = calibrationFor(32, 48)
	_, err = Annotate(s)
	test.That(t, err, test.ShouldNotBeNil)

	// the toggle is ignored until calibrated
	s.Mode = calibration.Capturing
	_, err = Annotate(s)
	test.That(t, err, test.ShouldBeNil)
}

func TestFrameWriter(t *testing.T) {
	dir := testutils.TempDir(t, "display")
	fw := NewFrameWriter(dir, logging.NewTestLogger(t))
	fw.Observe(testStatus())
	_, err := os.Stat(fw.Path(3))
	test.That(t, err, test.ShouldBeNil)

	fw.Observe(calibration.Status{FrameIndex: 4})
	_, err = os.Stat(fw.Path(4))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestLogObserver(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	lo := NewLogObserver(logger)
	s := testStatus()
	s.Accepted = true
	lo.Observe(s)
	lo.Observe(s)
	s.Mode = calibration.Calibrated
	lo.Observe(s)

	test.That(t, logs.FilterMessage("mode").Len(), test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("view accepted").Len(), test.ShouldEqual, 3)
}

func TestCommands(t *testing.T) {
	for key, want := range map[rune]calibration.Command{
		'g': calibration.Recapture,
		'u': calibration.ToggleUndistort,
		'q': calibration.Exit,
		27:  calibration.Exit,
		3:   calibration.Exit,
	} {
		cmd, ok := KeyCommand(key)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, cmd, test.ShouldEqual, want)
	}
	_, ok := KeyCommand('x')
	test.That(t, ok, test.ShouldBeFalse)

	commands := ReadCommands(context.Background(), strings.NewReader("gx\nu q"), logging.NewTestLogger(t))
	var got []calibration.Command
	for cmd := range commands {
		got = append(got, cmd)
	}
	test.That(t, got, test.ShouldResemble, []calibration.Command{calibration.Recapture, calibration.ToggleUndistort, calibration.Exit})
}

func TestSummary(t *testing.T) {
	c := calibrationFor(640, 400)
	s, err := Summarize(c)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Views, test.ShouldEqual, 3)
	test.That(t, s.RMS, test.ShouldEqual, 0.26)
	test.That(t, s.Mean, test.ShouldAlmostEqual, 0.7/3, 1e-12)
	test.That(t, s.Median, test.ShouldAlmostEqual, 0.2, 1e-12)
	test.That(t, s.Max, test.ShouldAlmostEqual, 0.4, 1e-12)

	var buf bytes.Buffer
	test.That(t, WriteTable(&buf, []string{"left", "right"}, []*calibration.Calibration{c, c}), test.ShouldBeNil)
	out := buf.String()
	test.That(t, out, test.ShouldContainSubstring, "left")
	test.That(t, out, test.ShouldContainSubstring, "520.00")
	test.That(t, out, test.ShouldContainSubstring, "-0.12000")

	_, err = Summarize(&calibration.Calibration{Model: c.Model})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewConsoleWriter(&buf)
	n, err := cw.Write([]byte("a\nb\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 4)
	test.That(t, buf.String(), test.ShouldEqual, "a\nb\n")

	buf.Reset()
	cw.SetRaw(true)
	n, err = cw.Write([]byte("a\nb\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 4)
	test.That(t, buf.String(), test.ShouldEqual, "a\r\nb\r\n")
}

func TestRawKeysOnPipe(t *testing.T) {
	var buf bytes.Buffer
	cw := NewConsoleWriter(&buf)
	restore, err := RawKeys(strings.NewReader("q"), cw)
	test.That(t, err, test.ShouldBeNil)
	_, err = cw.Write([]byte("x\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "x\n")
	test.That(t, restore(), test.ShouldBeNil)
}

func TestWriteErrorChart(t *testing.T) {
	dir := testutils.TempDir(t, "chart")
	path := filepath.Join(dir, "errors.png")
	c := calibrationFor(640, 400)
	test.That(t, WriteErrorChart(path, []string{"left", "right"}, []*calibration.Calibration{c, c}), test.ShouldBeNil)

	img, err := rimage.ReadImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldBeGreaterThan, 0)
	test.That(t, img.Bounds().Dy(), test.ShouldBeGreaterThan, 0)

	err = WriteErrorChart(path, []string{"left"}, []*calibration.Calibration{c, c})
	test.That(t, err, test.ShouldNotBeNil)

	empty := calibrationFor(640, 400)
	empty.Report.PerView = nil
	err = WriteErrorChart(path, []string{"left"}, []*calibration.Calibration{empty})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no views")
}
