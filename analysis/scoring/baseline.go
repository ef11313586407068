package scoring

import (
	"math"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
)

// Pitch normalization bounds for the baseline scorer.
const (
	baselineMinPitch = 50.0
	baselineMaxPitch = 1600.0
)

// baselineWeights weight [voiceQuality, clarity, stability, pitch, energy].
var baselineWeights = [5]float64{0.35, 0.25, 0.15, 0.20, 0.20}

// baselineProfiles are prototype feature vectors per label, same order as
// baselineWeights.
var baselineProfiles = map[Label][5]float64{
	Neutral: {0.5, 0.7, 0.8, 0.5, 0.5},
	Happy:   {0.7, 0.8, 0.6, 0.7, 0.7},
	Sad:     {0.4, 0.9, 0.3, 0.3, 0.2},
	Angry:   {0.3, 0.7, 0.2, 0.8, 0.9},
	Fearful: {0.3, 0.6, 0.2, 0.6, 0.4},
}

// BaselineScorer compares the clip's voice profile with a prototype profile
// per label. For each label the weighted per-feature distances become
// similarities exp(-w*d), normalized within the label, and the label's score
// is their weighted sum. Scores are then normalized across labels.
type BaselineScorer struct{}

// NewBaselineScorer creates a prototype-distance scorer
func NewBaselineScorer() *BaselineScorer {
	return &BaselineScorer{}
}

func (bs *BaselineScorer) Name() string { return config.ScorerBaseline }

// Score returns Uniform for an empty time series.
func (bs *BaselineScorer) Score(in *Input) (Emotions, error) {
	if in == nil || len(in.Pitch) == 0 {
		return Uniform(), nil
	}

	features := [5]float64{
		in.Voice.VoiceQuality,
		in.Voice.Clarity,
		in.Voice.Stability,
		normalizePitch(in.Voice.PitchMean),
		common.Clamp(in.Voice.EnergyMean, 0, 1),
	}

	var scores Emotions
	for _, l := range Labels {
		profile := baselineProfiles[l]

		var similarity [5]float64
		total := 0.0
		for i := range features {
			similarity[i] = math.Exp(-math.Abs(features[i]-profile[i]) * baselineWeights[i])
			total += similarity[i]
		}

		score := 0.0
		for i := range similarity {
			score += similarity[i] / total * baselineWeights[i]
		}
		scores.Set(l, score)
	}

	return scores.Normalize(), nil
}

// normalizePitch maps [50, 1600] Hz onto [0, 1] on a log scale.
func normalizePitch(pitch float64) float64 {
	p := common.Clamp(pitch, baselineMinPitch, baselineMaxPitch)
	return math.Log1p(p-baselineMinPitch) / math.Log1p(baselineMaxPitch-baselineMinPitch)
}
