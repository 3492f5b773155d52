// Package detection finds the features of a calibration target in an image.
package detection

import (
	"image"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage"
	"go.viam.com/stereocalib/rimage/detection/chessboard"
	"go.viam.com/stereocalib/rimage/detection/circlegrid"
	"go.viam.com/stereocalib/rimage/detection/subpixel"
)

// Options controls the detection pipeline.
type Options struct {
	// AdaptiveThreshold binarizes circle grids against the local mean instead of a global level.
	AdaptiveThreshold bool `json:"adaptive_threshold"`
	// FastCheck rejects chessboard frames that have too few saddle points at half resolution.
	FastCheck bool `json:"fast_check"`
	// NormalizeImage stretches the intensity range before detection.
	NormalizeImage bool `json:"normalize_image"`

	Chessboard chessboard.DetectionConfiguration `json:"chessboard"`
	Blobs      circlegrid.BlobConfiguration      `json:"blobs"`
	Subpixel   subpixel.Configuration            `json:"subpixel"`
}

// DefaultOptions turns every option on.
func DefaultOptions() Options {
	return Options{
		AdaptiveThreshold: true,
		FastCheck:         true,
		NormalizeImage:    true,
		Chessboard:        chessboard.DefaultDetectionConf,
		Blobs:             circlegrid.DefaultBlobConf,
		Subpixel:          subpixel.DefaultConfiguration,
	}
}

// Detector finds target features in images. It keeps no state between calls.
type Detector struct {
	opts   Options
	logger logging.Logger
}

// NewDetector returns a detector using opts.
func NewDetector(opts Options, logger logging.Logger) *Detector {
	return &Detector{opts: opts, logger: logger}
}

// Detect returns the features of the target described by spec, ordered like its object
// points, and whether the whole target was found.
func (d *Detector) Detect(img image.Image, spec pattern.Spec) ([]r2.Point, bool) {
	if img == nil || img.Bounds().Empty() {
		return nil, false
	}
	if spec.Type == pattern.Chessboard && d.opts.FastCheck &&
		!chessboard.FastCheck(img, spec.NumPoints(), &d.opts.Chessboard) {
		d.logger.Debug("chessboard fast check failed")
		return nil, false
	}

	lum := rimage.ConvertImageToLuminanceFloat(img)
	if d.opts.NormalizeImage {
		if err := rimage.NormalizeLuminance(lum); err != nil {
			d.logger.Debugw("cannot normalize frame", "error", err)
			return nil, false
		}
	}

	points, err := d.coarse(lum, spec)
	if err != nil {
		d.logger.Debugw("target not found", "pattern", spec.Type, "error", err)
		return nil, false
	}
	if len(points) != spec.NumPoints() {
		return nil, false
	}
	if spec.Type == pattern.Chessboard {
		points = subpixel.Refine(lum, points, d.opts.Subpixel)
	}
	// points are in image coordinates relative to Bounds().Min
	origin := img.Bounds().Min
	if origin != (image.Point{}) {
		offset := r2.Point{X: float64(origin.X), Y: float64(origin.Y)}
		for i := range points {
			points[i] = points[i].Add(offset)
		}
	}
	return points, true
}

func (d *Detector) coarse(lum *mat.Dense, spec pattern.Spec) ([]r2.Point, error) {
	switch spec.Type {
	case pattern.Chessboard:
		return chessboard.FindChessboard(lum, spec.Width, spec.Height, &d.opts.Chessboard)
	case pattern.CirclesGrid, pattern.AsymmetricCirclesGrid:
		return circlegrid.FindCirclesGrid(lum, spec.Width, spec.Height,
			spec.Type == pattern.AsymmetricCirclesGrid, d.opts.AdaptiveThreshold, &d.opts.Blobs)
	default:
		return nil, spec.Validate()
	}
}
