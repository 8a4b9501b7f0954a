package split

import (
	"errors"
	"fmt"
	"math"
)

// Binning errors.
var (
	ErrInvalidBins = errors.New("bin edges must be strictly increasing with at least two edges")
	ErrOutOfRange  = errors.New("value outside bin range")
)

// Bins turns a numeric column into ordered bucket labels 1..len(edges)-1.
//
// A value equal to an interior edge belongs to the bucket that starts at that
// edge, so with edges [0, 1.5, 3] the value 1.5 is bucket 2. The first edge is
// inclusive and the last edge closes the final bucket.
type Bins struct {
	edges []float64
}

// NewBins validates edges and returns the binning they describe.
func NewBins(edges []float64) (Bins, error) {
	if len(edges) < 2 {
		return Bins{}, ErrInvalidBins
	}
	for i, e := range edges {
		if math.IsNaN(e) {
			return Bins{}, ErrInvalidBins
		}
		if i > 0 && !(e > edges[i-1]) {
			return Bins{}, ErrInvalidBins
		}
	}
	return Bins{edges: append([]float64(nil), edges...)}, nil
}

// Count returns the number of buckets.
func (b Bins) Count() int {
	return len(b.edges) - 1
}

// Bounds returns the lower and upper edge of the 1-based bucket label.
func (b Bins) Bounds(label int) (lower, upper float64) {
	return b.edges[label-1], b.edges[label]
}

// Label returns the 1-based bucket for v.
func (b Bins) Label(v float64) (int, error) {
	last := len(b.edges) - 1
	if math.IsNaN(v) || v < b.edges[0] || v > b.edges[last] {
		return 0, fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, v, b.edges[0], b.edges[last])
	}
	for i := 1; i < last; i++ {
		if v < b.edges[i] {
			return i, nil
		}
	}
	return last, nil
}

// Assign labels every value, stopping at the first one out of range.
func (b Bins) Assign(values []float64) ([]int, error) {
	labels := make([]int, len(values))
	for i, v := range values {
		label, err := b.Label(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		labels[i] = label
	}
	return labels, nil
}
