package calibration

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/stereocalib/rimage/transform"
)

// ReprojectionReport holds the root mean square reprojection error of each view and of all
// views together, in pixels.
type ReprojectionReport struct {
	PerView []float64
	RMS     float64
}

// Score reprojects the object points through each view's pose and the camera model and
// compares them with the observed image points.
func Score(
	objectPoints []r3.Vector,
	imagePoints [][]r2.Point,
	rvecs, tvecs []r3.Vector,
	model *transform.PinholeCameraModel,
) (ReprojectionReport, error) {
	if len(imagePoints) == 0 {
		return ReprojectionReport{}, ErrNoViews
	}
	if len(objectPoints) == 0 {
		return ReprojectionReport{}, errors.Wrap(ErrPointCountMismatch, "no object points")
	}
	if len(rvecs) != len(imagePoints) || len(tvecs) != len(imagePoints) {
		return ReprojectionReport{}, errors.Errorf("have %d views but %d rotations and %d translations",
			len(imagePoints), len(rvecs), len(tvecs))
	}
	report := ReprojectionReport{PerView: make([]float64, len(imagePoints))}
	var total float64
	var count int
	for i, view := range imagePoints {
		if len(view) != len(objectPoints) {
			return ReprojectionReport{}, errors.Wrapf(ErrPointCountMismatch, "view %d has %d points, expected %d",
				i, len(view), len(objectPoints))
		}
		projected := transform.ProjectPoints(objectPoints, rvecs[i], tvecs[i], model)
		var sum float64
		for j, p := range view {
			d := projected[j].Sub(p)
			sum += d.Dot(d)
		}
		report.PerView[i] = math.Sqrt(sum / float64(len(view)))
		total += sum
		count += len(view)
	}
	report.RMS = math.Sqrt(total / float64(count))
	return report, nil
}
