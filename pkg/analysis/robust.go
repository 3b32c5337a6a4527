// Package analysis detects notable events in a merged session using robust
// statistics that tolerate the outliers they are looking for.
package analysis

import (
	"math"
	"sort"
)

// madScale converts a median absolute deviation into a standard-deviation
// equivalent for normally distributed data.
const madScale = 1.4826

// Median returns the median of values, 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// RobustStats returns the median and the median absolute deviation of values.
func RobustStats(values []float64) (median, mad float64) {
	if len(values) == 0 {
		return 0, 0
	}
	median = Median(values)
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - median)
	}
	return median, Median(devs)
}

// RobustZ scores x against the given median and MAD. Zero when the MAD is
// effectively zero (constant data has no outliers).
func RobustZ(x, median, mad float64) float64 {
	if mad < 1e-10 {
		return 0
	}
	return math.Abs(x-median) / (madScale * mad)
}
