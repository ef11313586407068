package spectral

import (
	"gonum.org/v1/gonum/stat"
)

// ZeroCrossingRate measures sign changes per frame.
// High ZCR indicates fricatives/unvoiced speech, low ZCR indicates voiced speech.
type ZeroCrossingRate struct{}

// NewZeroCrossingRate creates a new zero crossing rate calculator
func NewZeroCrossingRate() *ZeroCrossingRate {
	return &ZeroCrossingRate{}
}

// Crossings counts sign changes, treating zero as positive.
func (zcr *ZeroCrossingRate) Crossings(frame []float64) int {
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return crossings
}

// ComputeNormalized returns crossings divided by the maximum possible
// (len(frame)-1), so the result is in [0, 1].
func (zcr *ZeroCrossingRate) ComputeNormalized(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}
	return float64(zcr.Crossings(frame)) / float64(len(frame)-1)
}

// Mean returns the average of per-frame rates, 0 for none.
func (zcr *ZeroCrossingRate) Mean(rates []float64) float64 {
	if len(rates) == 0 {
		return 0.0
	}
	return stat.Mean(rates, nil)
}
