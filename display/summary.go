package display

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"

	"go.viam.com/stereocalib/calibration"
)

// Summary condenses the per view reprojection errors of a calibration.
type Summary struct {
	Views  int
	RMS    float64
	Mean   float64
	Median float64
	Max    float64
}

// Summarize computes the summary of c.
func Summarize(c *calibration.Calibration) (Summary, error) {
	perView := stats.Float64Data(c.Report.PerView)
	s := Summary{Views: len(perView), RMS: c.Report.RMS}
	var err error
	if s.Mean, err = perView.Mean(); err != nil {
		return Summary{}, err
	}
	if s.Median, err = perView.Median(); err != nil {
		return Summary{}, err
	}
	if s.Max, err = perView.Max(); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// WriteTable prints the intrinsics and error summary of each named calibration.
func WriteTable(w io.Writer, names []string, cals []*calibration.Calibration) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Camera", "Views", "fx", "fy", "cx", "cy", "k1", "k2", "p1", "p2", "k3",
		"RMS", "Mean", "Median", "Max"})
	for i, c := range cals {
		s, err := Summarize(c)
		if err != nil {
			return err
		}
		d := c.Model.DistortionCoefficients()
		row := table.Row{names[i], s.Views}
		for _, v := range []float64{c.Model.Fx, c.Model.Fy, c.Model.Ppx, c.Model.Ppy} {
			row = append(row, fmt.Sprintf("%.2f", v))
		}
		for _, v := range d[:5] {
			row = append(row, fmt.Sprintf("%.5f", v))
		}
		for _, v := range []float64{s.RMS, s.Mean, s.Median, s.Max} {
			row = append(row, fmt.Sprintf("%.4f", v))
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}
