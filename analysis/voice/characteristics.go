package voice

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
)

// Neutral is reported for quality, clarity and stability when there are no
// frames to measure.
const Neutral = 0.5

// Blend weights for VoiceQuality.
const (
	clarityWeight   = 0.4
	stabilityWeight = 0.3
	energyWeight    = 0.3
)

// Characteristics summarizes a clip's pitch and energy consistency.
type Characteristics struct {
	PitchMean    float64    `json:"pitchMean"`
	PitchRange   [2]float64 `json:"pitchRange"` // min, max
	VoiceQuality float64    `json:"voiceQuality"`
	Clarity      float64    `json:"clarity"`
	Stability    float64    `json:"stability"`

	EnergyMean     float64 `json:"energyMean"`
	PitchVariance  float64 `json:"pitchVariance"`
	EnergyVariance float64 `json:"energyVariance"`
}

// Default returns the characteristics of an empty time series.
func Default() Characteristics {
	return Characteristics{
		VoiceQuality: Neutral,
		Clarity:      Neutral,
		Stability:    Neutral,
	}
}

// Calculate derives characteristics from equal-length pitch and energy
// series. Variances are population variances, so
// stability = 1/(1+var(pitch)) and clarity = 1/(1+var(energy)) are 1 for
// constant series and never divide by zero.
func Calculate(pitch, energy []float64) (Characteristics, error) {
	if len(pitch) != len(energy) {
		return Characteristics{}, fmt.Errorf("pitch and energy series differ in length: %d vs %d", len(pitch), len(energy))
	}
	if len(pitch) == 0 {
		return Default(), nil
	}

	pitchMean, pitchVar := common.MeanPopVariance(pitch)
	energyMean, energyVar := common.MeanPopVariance(energy)
	pitchMin, pitchMax := common.MinMax(pitch)

	// Series that overflow (Inf - Inf) give a NaN variance. Treat it as
	// unbounded so the ratios below go to 0 instead of NaN.
	pitchVar = unboundedIfNaN(pitchVar)
	energyVar = unboundedIfNaN(energyVar)

	stability := 1 / (1 + pitchVar)
	clarity := 1 / (1 + energyVar)
	quality := clarityWeight*clarity + stabilityWeight*stability + energyWeight*math.Min(1, energyMean)

	return Characteristics{
		PitchMean:      pitchMean,
		PitchRange:     [2]float64{pitchMin, pitchMax},
		VoiceQuality:   common.Clamp(quality, 0, 1),
		Clarity:        common.Clamp(clarity, 0, 1),
		Stability:      common.Clamp(stability, 0, 1),
		EnergyMean:     energyMean,
		PitchVariance:  pitchVar,
		EnergyVariance: energyVar,
	}, nil
}

func unboundedIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}
