package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical helpers shared by the feature extractor, the voice
// characteristics calculator and the scorers. Backed by gonum.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PopVariance calculates the population variance, mean((x - mean)^2).
func PopVariance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	_, variance := stat.PopMeanVariance(data, nil)
	if variance < 0 {
		// rounding on constant input
		return 0.0
	}
	return variance
}

// MeanPopVariance returns the mean and population variance in one pass.
func MeanPopVariance(data []float64) (mean, variance float64) {
	switch len(data) {
	case 0:
		return 0, 0
	case 1:
		return data[0], 0
	}
	mean, variance = stat.PopMeanVariance(data, nil)
	return mean, math.Max(variance, 0)
}

// MinMax returns the smallest and largest values, (0, 0) for empty input.
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	return floats.Min(data), floats.Max(data)
}

// Sum adds the elements of data.
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Sum(data)
}

// ArgMax returns the index of the first maximum, -1 for empty input.
func ArgMax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// CountLocalMaxima counts interior points strictly greater than both neighbours.
func CountLocalMaxima(data []float64) int {
	count := 0
	for i := 1; i < len(data)-1; i++ {
		if data[i] > data[i-1] && data[i] > data[i+1] {
			count++
		}
	}
	return count
}

// AllFinite reports whether no element is NaN or ±Inf, and the index of the
// first offending element otherwise.
func AllFinite(data []float64) (bool, int) {
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, i
		}
	}
	return true, -1
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// RangeScore maps value linearly onto [0, 1] over [lo, hi], clamped.
// A degenerate range scores 1 at or above lo and 0 below it.
func RangeScore(value, lo, hi float64) float64 {
	if hi == lo {
		if value >= lo {
			return 1
		}
		return 0
	}
	return Clamp((value-lo)/(hi-lo), 0, 1)
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
