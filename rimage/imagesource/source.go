// Package imagesource provides the frame sources a calibration session reads from.
package imagesource

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/stereocalib/logging"
)

// ErrEndOfStream is returned by Next once a finite source has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// A Source produces frames.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	Close(ctx context.Context) error
}

// A LiveSource reports whether it produces frames from a running camera rather than a
// fixed list.
type LiveSource interface {
	Live() bool
}

// A SizedSource knows how many frames it will produce.
type SizedSource interface {
	Len() int
}

// IsLive reports whether src is a live source.
func IsLive(src Source) bool {
	if l, ok := src.(LiveSource); ok {
		return l.Live()
	}
	return false
}

// Len returns the number of frames of a finite source.
func Len(src Source) (int, bool) {
	if s, ok := src.(SizedSource); ok {
		return s.Len(), true
	}
	return 0, false
}

// StaticSource serves a fixed set of images in order.
type StaticSource struct {
	Images []image.Image
	// IsLive makes the source behave like a camera: it has no length.
	IsLive bool
	pos    int
}

// Next returns the next image or ErrEndOfStream.
func (ss *StaticSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ss.pos >= len(ss.Images) {
		return nil, ErrEndOfStream
	}
	img := ss.Images[ss.pos]
	ss.pos++
	return img, nil
}

// Live implements LiveSource.
func (ss *StaticSource) Live() bool {
	return ss.IsLive
}

// Len implements SizedSource.
func (ss *StaticSource) Len() int {
	return len(ss.Images)
}

// Close does nothing.
func (ss *StaticSource) Close(ctx context.Context) error {
	return nil
}

var cameraIndex = regexp.MustCompile(`^[0-9]+$`)

// Open resolves a settings Input value to a source. An http or https URL is polled as a live
// camera snapshot endpoint. A directory yields its images in name order. A .json or .txt file
// is read as an image list, and any other file is a single image.
func Open(input string, logger logging.Logger) (Source, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return nil, errors.New("no input given")
	case strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"):
		return NewHTTPSource(input, logger), nil
	case cameraIndex.MatchString(input):
		if _, err := os.Stat(input); err != nil {
			return nil, errors.Errorf("camera index input %q is not supported, use a snapshot url", input)
		}
	}

	info, err := os.Stat(input)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open input %q", input)
	}
	var paths []string
	if info.IsDir() {
		paths, err = ListDirectory(input)
	} else {
		switch strings.ToLower(filepath.Ext(input)) {
		case ".json", ".txt":
			paths, err = ReadImageListFile(input)
		default:
			paths = []string{input}
		}
	}
	if err != nil {
		return nil, err
	}
	return NewImageList(paths, logger), nil
}
