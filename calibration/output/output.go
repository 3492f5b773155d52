// Package output persists stereo calibration results as JSON camera files.
package output

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/stereocalib/calibration"
	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage/transform"
)

// TimeLayout is the layout of the calibration_Time field.
const TimeLayout = time.ANSIC

// CameraData is the content of one camera's calibration file.
type CameraData struct {
	CalibrationTime           string         `json:"calibration_Time"`
	NrOfFrames                int            `json:"nrOfFrames"`
	ImageWidth                int            `json:"image_Width"`
	ImageHeight               int            `json:"image_Height"`
	BoardWidth                int            `json:"board_Width"`
	BoardHeight               int            `json:"board_Height"`
	SquareSize                float64        `json:"square_Size"`
	FixAspectRatio            float64        `json:"FixAspectRatio,omitempty"`
	FlagValue                 int            `json:"flagValue"`
	FlagNames                 string         `json:"flags"`
	CameraMatrix              [3][3]float64  `json:"Camera_Matrix"`
	DistortionCoefficients    []float64      `json:"Distortion_Coefficients"`
	AvgReprojectionError      float64        `json:"Avg_Reprojection_Error"`
	PerViewReprojectionErrors []float64      `json:"Per_View_Reprojection_Errors,omitempty"`
	ExtrinsicParameters       [][6]float64   `json:"Extrinsic_Parameters,omitempty"`
	ImagePoints               [][][2]float64 `json:"Image_points,omitempty"`
}

// Options select what goes into a calibration file.
type Options struct {
	Spec        pattern.Spec
	Flags       calibration.Flags
	AspectRatio float64
	// WritePoints adds the detected image points of every view.
	WritePoints bool
	// WriteExtrinsics adds the rotation and translation of every view.
	WriteExtrinsics bool
}

// NewCameraData converts a calibration to its file form.
func NewCameraData(c *calibration.Calibration, opts Options, at time.Time) (*CameraData, error) {
	if c == nil || c.Model == nil {
		return nil, errors.New("no calibration to write")
	}
	data := &CameraData{
		CalibrationTime:           at.Format(TimeLayout),
		NrOfFrames:                c.Model.NumViews(),
		ImageWidth:                c.ImageSize.X,
		ImageHeight:               c.ImageSize.Y,
		BoardWidth:                opts.Spec.Width,
		BoardHeight:               opts.Spec.Height,
		SquareSize:                opts.Spec.SquareSize,
		FlagValue:                 opts.Flags.Bits(),
		FlagNames:                 opts.Flags.String(),
		CameraMatrix:              c.Model.CameraMatrix(),
		DistortionCoefficients:    c.Model.DistortionCoefficients(),
		AvgReprojectionError:      c.Report.RMS,
		PerViewReprojectionErrors: append([]float64(nil), c.Report.PerView...),
	}
	if opts.Flags.FixAspectRatio {
		data.FixAspectRatio = opts.AspectRatio
	}
	if opts.WriteExtrinsics {
		data.ExtrinsicParameters = make([][6]float64, len(c.Model.Rotations))
		for i, r := range c.Model.Rotations {
			tvec := c.Model.Translations[i]
			data.ExtrinsicParameters[i] = [6]float64{r.X, r.Y, r.Z, tvec.X, tvec.Y, tvec.Z}
		}
	}
	if opts.WritePoints {
		data.ImagePoints = make([][][2]float64, len(c.ImagePoints))
		for i, view := range c.ImagePoints {
			pts := make([][2]float64, len(view))
			for j, p := range view {
				pts[j] = [2]float64{p.X, p.Y}
			}
			data.ImagePoints[i] = pts
		}
	}
	return data, nil
}

// Flags decodes the solver constraints recorded in flagValue.
func (d *CameraData) Flags() calibration.Flags {
	return calibration.FlagsFromBits(d.FlagValue)
}

// Model rebuilds the camera model stored in the file.
func (d *CameraData) Model() (*transform.PinholeCameraModel, error) {
	distortion, err := transform.NewDistorter(transform.BrownConradyDistortionType, d.DistortionCoefficients)
	if err != nil {
		return nil, err
	}
	model := &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: &transform.PinholeCameraIntrinsics{
			Width:  d.ImageWidth,
			Height: d.ImageHeight,
			Fx:     d.CameraMatrix[0][0],
			Fy:     d.CameraMatrix[1][1],
			Ppx:    d.CameraMatrix[0][2],
			Ppy:    d.CameraMatrix[1][2],
		},
		Distortion: distortion,
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

// Points returns the stored image points of every view.
func (d *CameraData) Points() [][]r2.Point {
	views := make([][]r2.Point, len(d.ImagePoints))
	for i, view := range d.ImagePoints {
		views[i] = make([]r2.Point, len(view))
		for j, p := range view {
			views[i][j] = r2.Point{X: p[0], Y: p[1]}
		}
	}
	return views
}

// Write saves data to path.
func Write(path string, data *CameraData) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, buf, 0o644), "cannot write calibration %q", path)
}

// Read loads a calibration file.
func Read(path string) (*CameraData, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read calibration %q", path)
	}
	var data CameraData
	if err := json.Unmarshal(buf, &data); err != nil {
		return nil, errors.Wrapf(err, "cannot parse calibration %q", path)
	}
	return &data, nil
}

// Writer stores committed calibration pairs in two files.
type Writer struct {
	LeftPath, RightPath string
	Options             Options

	clock  clock.Clock
	logger logging.Logger
}

// NewWriter returns a writer stamping files with the wall clock.
func NewWriter(leftPath, rightPath string, opts Options, logger logging.Logger) *Writer {
	return &Writer{LeftPath: leftPath, RightPath: rightPath, Options: opts, clock: clock.New(), logger: logger}
}

// WithClock replaces the clock used for calibration_Time.
func (w *Writer) WithClock(clk clock.Clock) *Writer {
	w.clock = clk
	return w
}

// Save implements calibration.ResultSink.
func (w *Writer) Save(ctx context.Context, left, right *calibration.Calibration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := w.clock.Now()
	var err error
	for _, side := range []struct {
		path string
		cal  *calibration.Calibration
	}{{w.LeftPath, left}, {w.RightPath, right}} {
		data, convErr := NewCameraData(side.cal, w.Options, now)
		if convErr != nil {
			err = multierr.Append(err, convErr)
			continue
		}
		if writeErr := Write(side.path, data); writeErr != nil {
			err = multierr.Append(err, writeErr)
			continue
		}
		w.logger.Infow("calibration saved", "path", side.path, "rms", data.AvgReprojectionError)
	}
	return err
}
