package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	// register ppm.
	_ "github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	// register webp.
	_ "golang.org/x/image/webp"
)

// ReadImageFromFile decodes the image at path. PNG, JPEG, GIF, BMP, TIFF, WEBP and PPM are
// supported.
func ReadImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image %q", path)
	}
	return img, nil
}

// WriteImageToFile encodes img to path, choosing the format from the file extension.
func WriteImageToFile(path string, img image.Image) error {
	return errors.Wrapf(imaging.Save(img, path), "cannot write image %q", path)
}
