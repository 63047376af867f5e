package crossfilter

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyDimensions is returned when an engine already has 64 dimensions.
	ErrTooManyDimensions = errors.New("crossfilter: too many dimensions")
	// ErrTooManyRecords is returned when record positions do not fit in 32 bits.
	ErrTooManyRecords = errors.New("crossfilter: too many records")
	// ErrMisalignedSeries is returned when stacked groups do not share buckets.
	ErrMisalignedSeries = errors.New("crossfilter: stacked groups do not share a dimension")
)

// InvalidRangeError reports a range filter whose lower bound exceeds its upper bound.
type InvalidRangeError struct {
	Dimension string
	Lo        any
	Hi        any
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("crossfilter: invalid range on %s: %v > %v", e.Dimension, e.Lo, e.Hi)
}
