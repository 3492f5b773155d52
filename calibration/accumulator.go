package calibration

import "github.com/golang/geo/r2"

// Accumulator collects the image points of accepted views for one camera.
type Accumulator struct {
	views [][]r2.Point
}

// Accept appends a copy of points as a new view.
func (a *Accumulator) Accept(points []r2.Point) {
	a.views = append(a.views, append([]r2.Point(nil), points...))
}

// Reset drops every view.
func (a *Accumulator) Reset() {
	a.views = nil
}

// Count is the number of accepted views.
func (a *Accumulator) Count() int {
	return len(a.views)
}

// Views returns the accepted views in order. The point slices must not be modified.
func (a *Accumulator) Views() [][]r2.Point {
	return append([][]r2.Point(nil), a.views...)
}
