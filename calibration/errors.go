package calibration

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDivergent is returned when the solved camera model is out of range.
	ErrDivergent = errors.New("calibration diverged")
	// ErrNoViews is returned when there is nothing to calibrate from.
	ErrNoViews = errors.New("no views to calibrate from")
	// ErrPointCountMismatch is returned when a view does not hold one image point per object point.
	ErrPointCountMismatch = errors.New("image point count does not match object point count")
	// ErrEndOfInputWithInsufficientViews is returned when the input ends before both cameras are calibrated.
	ErrEndOfInputWithInsufficientViews = errors.New("input ended without a calibration")
)

// endOfInputError reports the end of input together with the last estimation failure, if any.
type endOfInputError struct {
	views int
	cause error
}

func (e *endOfInputError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%v: %d views collected", ErrEndOfInputWithInsufficientViews, e.views)
	}
	return fmt.Sprintf("%v: %d views collected: %v", ErrEndOfInputWithInsufficientViews, e.views, e.cause)
}

func (e *endOfInputError) Is(target error) bool {
	return target == ErrEndOfInputWithInsufficientViews
}

func (e *endOfInputError) Unwrap() error {
	return e.cause
}
