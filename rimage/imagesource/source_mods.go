package imagesource

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// FlipVerticalSource mirrors every frame of Original around the horizontal axis.
type FlipVerticalSource struct {
	Original Source
}

// Next returns the flipped next frame of the original source.
func (fs *FlipVerticalSource) Next(ctx context.Context) (image.Image, error) {
	orig, err := fs.Original.Next(ctx)
	if err != nil {
		return nil, err
	}
	return imaging.FlipV(orig), nil
}

// Live reports whether the original source is live.
func (fs *FlipVerticalSource) Live() bool {
	return IsLive(fs.Original)
}

// Len is the length of the original source, or 0 when it has none.
func (fs *FlipVerticalSource) Len() int {
	n, _ := Len(fs.Original)
	return n
}

// Close closes the original source.
func (fs *FlipVerticalSource) Close(ctx context.Context) error {
	return fs.Original.Close(ctx)
}
