package utils

import (
	"math"
	"sort"
)

// Median returns the median of v without modifying it. It returns NaN for an
// empty slice.
func Median(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}

// MeanAbsoluteError returns mean(|pred - actual|). The slices must have the
// same length; NaN is returned when they are empty.
func MeanAbsoluteError(pred, actual []float64) float64 {
	if len(actual) == 0 {
		return math.NaN()
	}
	var s float64
	for i := range actual {
		s += math.Abs(pred[i] - actual[i])
	}
	return s / float64(len(actual))
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
