package temporal

import (
	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
)

// DefaultTempo is reported when there are too few frames to count peaks.
const DefaultTempo = 120.0

// minTempoFrames is the smallest energy series with an interior frame.
const minTempoFrames = 3

// TempoEstimation estimates speech tempo as energy peaks per minute.
type TempoEstimation struct {
	hopSize      int
	sampleRate   int
	defaultTempo float64
}

// NewTempoEstimation creates a new tempo estimator. A non-positive
// defaultTempo falls back to DefaultTempo.
func NewTempoEstimation(hopSize, sampleRate int, defaultTempo float64) *TempoEstimation {
	if defaultTempo <= 0 {
		defaultTempo = DefaultTempo
	}
	return &TempoEstimation{
		hopSize:      hopSize,
		sampleRate:   sampleRate,
		defaultTempo: defaultTempo,
	}
}

// EstimateTempo counts strict local maxima in the per-frame energy series
// and divides by the series duration (frames*hop/sampleRate) in minutes.
func (te *TempoEstimation) EstimateTempo(energies []float64) float64 {
	if len(energies) < minTempoFrames || te.hopSize <= 0 || te.sampleRate <= 0 {
		return te.defaultTempo
	}

	peaks := common.CountLocalMaxima(energies)
	duration := float64(len(energies)*te.hopSize) / float64(te.sampleRate)
	return float64(peaks) / duration * 60.0
}

// ClassifyTempoCategory classifies tempo into broad categories
func (te *TempoEstimation) ClassifyTempoCategory(tempo float64) string {
	switch {
	case tempo < 60:
		return "very_slow"
	case tempo < 90:
		return "slow"
	case tempo < 120:
		return "moderate"
	case tempo < 150:
		return "fast"
	default:
		return "very_fast"
	}
}
