package imagesource

import (
	"bufio"
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".gif": true,
	".tif": true, ".tiff": true, ".ppm": true, ".webp": true,
}

// ImageList reads a finite list of image files in order.
type ImageList struct {
	paths  []string
	pos    int
	logger logging.Logger
}

// NewImageList returns a source over paths.
func NewImageList(paths []string, logger logging.Logger) *ImageList {
	return &ImageList{paths: append([]string(nil), paths...), logger: logger}
}

// Next reads the next file. A file that cannot be decoded is reported and the list moves on.
func (il *ImageList) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if il.pos >= len(il.paths) {
		return nil, ErrEndOfStream
	}
	path := il.paths[il.pos]
	il.pos++
	il.logger.Debugw("reading frame", "path", path, "index", il.pos)
	return rimage.ReadImageFromFile(path)
}

// Len implements SizedSource.
func (il *ImageList) Len() int {
	return len(il.paths)
}

// Live implements LiveSource.
func (il *ImageList) Live() bool {
	return false
}

// Close does nothing.
func (il *ImageList) Close(ctx context.Context) error {
	return nil
}

// ListDirectory returns the image files of dir sorted by name.
func ListDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list %q", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, errors.Errorf("no images in %q", dir)
	}
	return paths, nil
}

type imageListFile struct {
	Images []string `json:"images"`
}

// ReadImageListFile reads an image list. A .json file holds either an array of paths or an
// object with an "images" array; any other file holds one path per line, with blank lines
// and lines starting with # ignored. Relative paths are relative to the list file.
func ReadImageListFile(path string) ([]string, error) {
	var names []string
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read image list %q", path)
		}
		if err := json.Unmarshal(data, &names); err != nil {
			var wrapped imageListFile
			if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
				return nil, errors.Wrapf(err, "cannot parse image list %q", path)
			}
			names = wrapped.Images
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read image list %q", path)
		}
		defer goutils.UncheckedErrorFunc(f.Close)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			names = append(names, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrapf(err, "cannot read image list %q", path)
		}
	}
	if len(names) == 0 {
		return nil, errors.Errorf("image list %q is empty", path)
	}
	base := filepath.Dir(path)
	for i, n := range names {
		if !filepath.IsAbs(n) {
			names[i] = filepath.Join(base, n)
		}
	}
	return names, nil
}
