package display

import (
	"fmt"
	"path/filepath"

	"go.viam.com/stereocalib/calibration"
	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage"
)

// LogObserver reports mode changes and accepted views.
type LogObserver struct {
	logger   logging.Logger
	lastMode calibration.SessionMode
	started  bool
}

// NewLogObserver returns an observer writing to logger.
func NewLogObserver(logger logging.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Observe implements calibration.Observer.
func (lo *LogObserver) Observe(s calibration.Status) {
	if !lo.started || s.Mode != lo.lastMode {
		lo.logger.Infow("mode", "mode", s.Mode, "frame", s.FrameIndex, "status", s.Message())
		lo.started = true
		lo.lastMode = s.Mode
	}
	if s.Accepted {
		lo.logger.Infow("view accepted", "frame", s.FrameIndex, "views", s.Views, "target", s.Target)
		return
	}
	lo.logger.Debugw("view rejected", "frame", s.FrameIndex, "left_found", s.LeftFound, "right_found", s.RightFound)
}

// FrameWriter saves the annotated preview of every status as a numbered image in Dir.
type FrameWriter struct {
	Dir    string
	logger logging.Logger
}

// NewFrameWriter returns a writer saving into dir.
func NewFrameWriter(dir string, logger logging.Logger) *FrameWriter {
	return &FrameWriter{Dir: dir, logger: logger}
}

// Path is where the preview of frame index is written.
func (fw *FrameWriter) Path(index int) string {
	return filepath.Join(fw.Dir, fmt.Sprintf("frame_%04d.png", index))
}

// Observe implements calibration.Observer. Failures are logged; the run goes on.
func (fw *FrameWriter) Observe(s calibration.Status) {
	img, err := Annotate(s)
	if err != nil {
		fw.logger.Warnw("cannot annotate frame", "frame", s.FrameIndex, "error", err)
		return
	}
	if err := rimage.WriteImageToFile(fw.Path(s.FrameIndex), img); err != nil {
		fw.logger.Warnw("cannot write frame", "frame", s.FrameIndex, "error", err)
	}
}
