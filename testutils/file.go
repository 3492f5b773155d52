package testutils

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/stereocalib/rimage"
)

// TempDir creates a temporary directory that is removed when the test ends.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, os.RemoveAll(dir), test.ShouldBeNil)
	})
	return dir
}

// WriteImages saves imgs as numbered png files in dir and returns their paths in order.
func WriteImages(t *testing.T, dir string, imgs []image.Image) []string {
	t.Helper()
	paths := make([]string, 0, len(imgs))
	for i, img := range imgs {
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		test.That(t, rimage.WriteImageToFile(path, img), test.ShouldBeNil)
		paths = append(paths, path)
	}
	return paths
}
