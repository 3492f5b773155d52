package calibration

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage"
	"go.viam.com/stereocalib/rimage/imagesource"
	"go.viam.com/stereocalib/utils"
)

// SessionMode is the state of a stereo calibration run.
type SessionMode int

const (
	// Detection shows detections without collecting toward a calibration.
	Detection SessionMode = iota
	// Capturing collects views until the target count is reached.
	Capturing
	// Calibrated holds a committed calibration pair.
	Calibrated
)

func (m SessionMode) String() string {
	switch m {
	case Detection:
		return "detection"
	case Capturing:
		return "capturing"
	case Calibrated:
		return "calibrated"
	}
	return "unknown"
}

// Command is user feedback delivered to a running controller.
type Command int

const (
	// Recapture discards the collected views and starts capturing. Only live sources honor it.
	Recapture Command = iota
	// ToggleUndistort switches the undistorted preview once calibrated.
	ToggleUndistort
	// Exit ends the run.
	Exit
)

func (c Command) String() string {
	switch c {
	case Recapture:
		return "recapture"
	case ToggleUndistort:
		return "toggle_undistort"
	case Exit:
		return "exit"
	}
	return "unknown"
}

// Status is what observers see after every processed frame.
type Status struct {
	Mode        SessionMode
	Live        bool
	FrameIndex  int
	Frame       image.Image
	Left, Right image.Image

	LeftPoints, RightPoints []r2.Point
	LeftFound, RightFound   bool
	RowLength               int

	// Accepted is set on the frame whose views were recorded.
	Accepted   bool
	AcceptedAt time.Time
	Views      int
	Target     int

	ShowUndistorted                   bool
	LeftCalibration, RightCalibration *Calibration
}

// Message is the one line summary drawn over the preview.
func (s Status) Message() string {
	switch s.Mode {
	case Capturing:
		if s.ShowUndistorted {
			return fmt.Sprintf("%d/%d Undist", s.Views, s.Target)
		}
		return fmt.Sprintf("%d/%d", s.Views, s.Target)
	case Calibrated:
		return "Calibrated"
	default:
		return "Press 'g' to start"
	}
}

// An Observer is notified of every processed frame. It runs on the controller goroutine.
type Observer interface {
	Observe(Status)
}

// A ResultSink stores a committed calibration pair.
type ResultSink interface {
	Save(ctx context.Context, left, right *Calibration) error
}

// ControllerConfig is the immutable configuration of a stereo calibration run.
type ControllerConfig struct {
	Spec            pattern.Spec
	Flags           Flags
	FrameWidth      int
	FrameHeight     int
	TargetViews     int
	FlipVertical    bool
	Delay           time.Duration
	ShowUndistorted bool
}

// Validate checks the configuration.
func (cfg ControllerConfig) Validate() error {
	if err := cfg.Spec.Validate(); err != nil {
		return err
	}
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		return errors.Errorf("frame size must be positive, got %dx%d", cfg.FrameWidth, cfg.FrameHeight)
	}
	if cfg.TargetViews <= 0 {
		return errors.Errorf("target view count must be positive, got %d", cfg.TargetViews)
	}
	if cfg.Delay < 0 {
		return errors.Errorf("delay must not be negative, got %v", cfg.Delay)
	}
	return nil
}

// ImageSize is the size of one camera's half of a stereo frame.
func (cfg ControllerConfig) ImageSize() image.Point {
	return image.Point{X: cfg.FrameWidth, Y: cfg.FrameHeight}
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithCommands sets the channel user commands arrive on.
func WithCommands(commands <-chan Command) Option {
	return func(c *Controller) {
		c.commands = commands
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// WithSink sets where committed calibrations go.
func WithSink(sink ResultSink) Option {
	return func(c *Controller) {
		c.sink = sink
	}
}

// Controller runs a stereo calibration session over a frame source.
type Controller struct {
	cfg         ControllerConfig
	source      imagesource.Source
	left, right *CameraSession

	clock     clock.Clock
	commands  <-chan Command
	observers []Observer
	sink      ResultSink
	logger    logging.Logger

	mode            SessionMode
	target          int
	live            bool
	showUndistorted bool
	acceptedAt      time.Time
	frameIndex      int
}

// NewController returns a controller for the given camera sessions. Both sessions must use
// the configured pattern.
func NewController(
	cfg ControllerConfig,
	source imagesource.Source,
	left, right *CameraSession,
	logger logging.Logger,
	opts ...Option,
) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || left == nil || right == nil {
		return nil, errors.New("controller needs a source and two camera sessions")
	}
	if left.Spec() != cfg.Spec || right.Spec() != cfg.Spec {
		return nil, errors.Wrap(pattern.ErrInvalidPatternSpec, "camera sessions do not use the configured pattern")
	}
	c := &Controller{
		cfg:             cfg,
		source:          source,
		left:            left,
		right:           right,
		clock:           clock.New(),
		logger:          logger,
		showUndistorted: cfg.ShowUndistorted,
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.FlipVertical {
		c.source = &imagesource.FlipVerticalSource{Original: source}
	}
	c.live = imagesource.IsLive(c.source)
	c.target = cfg.TargetViews
	if n, ok := imagesource.Len(c.source); ok && !c.live && n > 0 && n < c.target {
		logger.Infow("capping target views at the image list length", "target", c.target, "images", n)
		c.target = n
	}
	if c.live {
		c.mode = Detection
	} else {
		c.mode = Capturing
	}
	return c, nil
}

// Mode is the current session mode.
func (c *Controller) Mode() SessionMode {
	return c.mode
}

// Target is the number of views collected before estimating.
func (c *Controller) Target() int {
	return c.target
}

// Left is the left camera's session.
func (c *Controller) Left() *CameraSession {
	return c.left
}

// Right is the right camera's session.
func (c *Controller) Right() *CameraSession {
	return c.right
}

// Run processes frames until the source ends, Exit is received or ctx is done. A finite
// source that ends without a calibration pair fails with ErrEndOfInputWithInsufficientViews.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Combine(err, c.source.Close(context.Background()))
	}()
	c.logger.Infow("starting calibration", "mode", c.mode, "target", c.target, "pattern", c.cfg.Spec.Type,
		"flags", c.cfg.Flags)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.pollCommands() {
			c.logger.Info("exit requested")
			return nil
		}

		frame, err := c.source.Next(ctx)
		if err != nil {
			if errors.Is(err, imagesource.ErrEndOfStream) {
				return c.finish(ctx)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			c.logger.Warnw("cannot read frame, skipping", "error", err)
			continue
		}
		c.frameIndex++
		if err := c.processFrame(ctx, frame); err != nil {
			return err
		}
		if c.cfg.Delay > 0 {
			c.clock.Sleep(c.cfg.Delay)
		}
	}
}

// pollCommands applies every pending command and reports whether Exit was among them.
func (c *Controller) pollCommands() bool {
	if c.commands == nil {
		return false
	}
	for {
		select {
		case cmd, ok := <-c.commands:
			if !ok {
				c.commands = nil
				return false
			}
			c.logger.Debugw("command", "command", cmd, "mode", c.mode)
			switch cmd {
			case Exit:
				return true
			case Recapture:
				if !c.live {
					c.logger.Debug("recapture ignored for an image list")
					continue
				}
				c.mode = Capturing
				c.left.Reset()
				c.right.Reset()
			case ToggleUndistort:
				if c.mode == Calibrated {
					c.showUndistorted = !c.showUndistorted
				}
			}
		default:
			return false
		}
	}
}

func (c *Controller) processFrame(ctx context.Context, frame image.Image) error {
	left, right, err := rimage.SplitStereo(frame, c.cfg.FrameWidth, c.cfg.FrameHeight)
	if err != nil {
		c.logger.Warnw("skipping frame", "frame", c.frameIndex, "error", err)
		return nil
	}

	var leftPoints, rightPoints []r2.Point
	var leftFound, rightFound bool
	if _, err := utils.RunInParallel(ctx, []utils.SimpleFunc{
		func(ctx context.Context) error {
			leftPoints, leftFound = c.left.Detect(left)
			return nil
		},
		func(ctx context.Context) error {
			rightPoints, rightFound = c.right.Detect(right)
			return nil
		},
	}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warnw("detection failed", "frame", c.frameIndex, "error", err)
		return nil
	}

	accepted := leftFound && rightFound
	if accepted {
		c.left.Accept(leftPoints)
		c.right.Accept(rightPoints)
		c.acceptedAt = c.clock.Now()
		c.logger.Debugw("views accepted", "frame", c.frameIndex, "views", c.left.Count())
	}
	if accepted && c.mode != Calibrated && c.left.Count() >= c.target {
		if err := c.calibrate(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	c.notify(Status{
		Mode:             c.mode,
		Live:             c.live,
		FrameIndex:       c.frameIndex,
		Frame:            frame,
		Left:             left,
		Right:            right,
		LeftPoints:       leftPoints,
		RightPoints:      rightPoints,
		LeftFound:        leftFound,
		RightFound:       rightFound,
		RowLength:        c.cfg.Spec.Width,
		Accepted:         accepted,
		AcceptedAt:       c.acceptedAt,
		Views:            c.left.Count(),
		Target:           c.target,
		ShowUndistorted:  c.showUndistorted,
		LeftCalibration:  c.left.Last(),
		RightCalibration: c.right.Last(),
	})
	return nil
}

// calibrate estimates both cameras. The pair is committed only when both succeed; otherwise
// the session returns to Detection with no collected views.
func (c *Controller) calibrate(ctx context.Context) error {
	size := c.cfg.ImageSize()
	var leftCal, rightCal *Calibration
	_, err := utils.RunInParallel(ctx, []utils.SimpleFunc{
		func(ctx context.Context) error {
			var err error
			leftCal, err = c.left.Calibrate(ctx, size, c.cfg.Flags)
			return err
		},
		func(ctx context.Context) error {
			var err error
			rightCal, err = c.right.Calibrate(ctx, size, c.cfg.Flags)
			return err
		},
	})
	if err != nil {
		c.logger.Errorw("calibration failed, collect new views", "views", c.left.Count(), "error", err)
		c.mode = Detection
		c.left.Reset()
		c.right.Reset()
		return err
	}
	c.left.Commit(leftCal)
	c.right.Commit(rightCal)
	c.mode = Calibrated
	c.logger.Infow("stereo pair calibrated", "views", leftCal.Model.NumViews(),
		"left_rms", leftCal.Report.RMS, "right_rms", rightCal.Report.RMS)
	if c.sink != nil {
		if err := c.sink.Save(ctx, leftCal, rightCal); err != nil {
			c.logger.Errorw("cannot save calibration", "error", err)
		}
	}
	return nil
}

// finish handles the end of a finite source.
func (c *Controller) finish(ctx context.Context) error {
	views := c.left.Count()
	var cause error
	if c.mode == Capturing && views > 0 {
		c.logger.Infow("input ended while capturing, calibrating from collected views", "views", views)
		cause = c.calibrate(ctx)
		if cause != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if c.left.Last() != nil && c.right.Last() != nil {
		return nil
	}
	return &endOfInputError{views: views, cause: cause}
}

func (c *Controller) notify(s Status) {
	for _, o := range c.observers {
		o.Observe(s)
	}
}
