// Package config reads the settings of a stereo calibration run.
package config

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/stereocalib/calibration"
	"go.viam.com/stereocalib/calibration/pattern"
)

// ErrInvalidSettings is returned when settings fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings mirror the keys of the calibration settings file.
type Settings struct {
	BoardWidth  int     `json:"BoardSize_Width"`
	BoardHeight int     `json:"BoardSize_Height"`
	SquareSize  float64 `json:"Square_Size"`
	Pattern     string  `json:"Calibrate_Pattern"`
	NrFrames    int     `json:"Calibrate_NrOfFrameToUse"`
	// AspectRatio fixes fx/fy when non-zero.
	AspectRatio         float64 `json:"Calibrate_FixAspectRatio"`
	ZeroTangentDist     bool    `json:"Calibrate_AssumeZeroTangentialDistortion"`
	FixPrincipalPoint   bool    `json:"Calibrate_FixPrincipalPointAtTheCenter"`
	WritePoints         bool    `json:"Write_DetectedFeaturePoints"`
	WriteExtrinsics     bool    `json:"Write_extrinsicParameters"`
	LeftOutputFileName  string  `json:"Write_LeftOutputFileName"`
	RightOutputFileName string  `json:"Write_RightOutputFileName"`
	Input               string  `json:"Input"`
	FlipVertical        bool    `json:"Input_FlipAroundHorizontalAxis"`
	DelayMillis         int     `json:"Input_Delay"`
	ShowUndistorted     bool    `json:"Show_UndistortedImage"`
	FrameWidth          int     `json:"Stereo_FrameWidth"`
	FrameHeight         int     `json:"Stereo_FrameHeight"`
}

// Default returns the settings used for keys a file leaves out.
func Default() Settings {
	return Settings{
		Pattern:             pattern.Chessboard.String(),
		NrFrames:            25,
		DelayMillis:         100,
		LeftOutputFileName:  "left_out_camera_data.json",
		RightOutputFileName: "right_out_camera_data.json",
		FrameWidth:          640,
		FrameHeight:         400,
	}
}

// Read reads settings from a JSON file, expanding environment variables first.
func Read(path string) (*Settings, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read settings %q", path)
	}
	return decode(buf)
}

// FromBytes reads settings from JSON text, expanding environment variables first.
func FromBytes(data []byte) (*Settings, error) {
	buf, err := envsubst.Bytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "cannot expand settings")
	}
	return decode(buf)
}

func decode(buf []byte) (*Settings, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings from json")
	}
	// files written for the original tool nest everything under "Settings"
	if nested, ok := raw["Settings"].(map[string]interface{}); ok && len(raw) == 1 {
		raw = nested
	}

	settings := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &settings,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks every setting and reports all problems at once. Target problems also
// match pattern.ErrInvalidPatternSpec.
func (s *Settings) Validate() error {
	var problems error
	if s.BoardWidth <= 0 || s.BoardHeight <= 0 {
		problems = multierr.Append(problems,
			errors.Wrapf(pattern.ErrInvalidPatternSpec, "invalid board size %dx%d", s.BoardWidth, s.BoardHeight))
	}
	if !(s.SquareSize > pattern.MinSquareSize) {
		problems = multierr.Append(problems,
			errors.Wrapf(pattern.ErrInvalidPatternSpec, "invalid square size %v", s.SquareSize))
	}
	if _, err := pattern.ParseType(s.Pattern); err != nil {
		problems = multierr.Append(problems, err)
	}
	if s.NrFrames <= 0 {
		problems = multierr.Append(problems, errors.Errorf("invalid number of frames %d", s.NrFrames))
	}
	if strings.TrimSpace(s.Input) == "" {
		problems = multierr.Append(problems, errors.New("no input given"))
	}
	if s.DelayMillis < 0 {
		problems = multierr.Append(problems, errors.Errorf("invalid delay %d", s.DelayMillis))
	}
	if s.FrameWidth <= 0 || s.FrameHeight <= 0 {
		problems = multierr.Append(problems, errors.Errorf("invalid stereo frame size %dx%d", s.FrameWidth, s.FrameHeight))
	}
	if problems != nil {
		return multierr.Combine(ErrInvalidSettings, problems)
	}
	return nil
}

// PatternSpec is the configured calibration target.
func (s *Settings) PatternSpec() (pattern.Spec, error) {
	t, err := pattern.ParseType(s.Pattern)
	if err != nil {
		return pattern.Spec{}, err
	}
	spec := pattern.Spec{Type: t, Width: s.BoardWidth, Height: s.BoardHeight, SquareSize: s.SquareSize}
	return spec, spec.Validate()
}

// Flags are the solver constraints the settings select.
func (s *Settings) Flags() calibration.Flags {
	return calibration.Flags{
		FixAspectRatio:    s.AspectRatio != 0,
		ZeroTangentDist:   s.ZeroTangentDist,
		FixPrincipalPoint: s.FixPrincipalPoint,
	}
}

// Delay is the pause between frames.
func (s *Settings) Delay() time.Duration {
	return time.Duration(s.DelayMillis) * time.Millisecond
}

// ControllerConfig returns the session configuration.
func (s *Settings) ControllerConfig() (calibration.ControllerConfig, error) {
	spec, err := s.PatternSpec()
	if err != nil {
		return calibration.ControllerConfig{}, err
	}
	return calibration.ControllerConfig{
		Spec:            spec,
		Flags:           s.Flags(),
		FrameWidth:      s.FrameWidth,
		FrameHeight:     s.FrameHeight,
		TargetViews:     s.NrFrames,
		FlipVertical:    s.FlipVertical,
		Delay:           s.Delay(),
		ShowUndistorted: s.ShowUndistorted,
	}, nil
}
