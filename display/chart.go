package display

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/stereocalib/calibration"
)

// WriteErrorChart saves a bar chart of the per view reprojection errors of each named
// calibration, grouped by view. The image format follows the extension of path.
func WriteErrorChart(path string, names []string, cals []*calibration.Calibration) error {
	if len(names) != len(cals) {
		return errors.Errorf("%d names for %d calibrations", len(names), len(cals))
	}
	p := plot.New()
	p.Title.Text = "Reprojection error per view"
	p.X.Label.Text = "view"
	p.Y.Label.Text = "error (px)"

	const barWidth = 6
	views := 0
	for i, c := range cals {
		if len(c.Report.PerView) == 0 {
			return errors.Errorf("%s calibration has no views", names[i])
		}
		bars, err := plotter.NewBarChart(plotter.Values(c.Report.PerView), vg.Points(barWidth))
		if err != nil {
			return errors.Wrapf(err, "cannot chart %s errors", names[i])
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Points(barWidth * (float64(i) - float64(len(cals)-1)/2))
		p.Add(bars)
		p.Legend.Add(fmt.Sprintf("%s (rms %.3f)", names[i], c.Report.RMS), bars)
		if len(c.Report.PerView) > views {
			views = len(c.Report.PerView)
		}
	}
	p.Legend.Top = true

	width := vg.Length(views*len(cals)*barWidth*2) + 2*vg.Inch
	if width < 6*vg.Inch {
		width = 6 * vg.Inch
	}
	return errors.Wrapf(p.Save(width, 3*vg.Inch, path), "cannot save chart %q", path)
}
