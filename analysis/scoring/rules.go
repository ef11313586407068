package scoring

import (
	"fmt"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
)

// ruleLabels are the labels scored directly by rules; neutral is derived.
var ruleLabels = []Label{Happy, Sad, Angry, Fearful}

// RuleScorer is the deterministic heuristic scorer. Each emotion is a
// weighted sum of four terms in [0, 1]: mean pitch, mean energy, tempo and
// spectral centroid, each placed within the emotion's range. Neutral is
// max(floor, 1 - variance of the four raw scores), so indistinct emotions
// read as neutral. All five are then divided by their sum.
type RuleScorer struct {
	rules        map[Label]config.EmotionRule
	neutralFloor float64
}

// NewRuleScorer copies rules, which must cover happy, sad, angry and fearful.
func NewRuleScorer(rules map[string]config.EmotionRule, neutralFloor float64) (*RuleScorer, error) {
	rs := &RuleScorer{
		rules:        make(map[Label]config.EmotionRule, len(ruleLabels)),
		neutralFloor: neutralFloor,
	}
	for _, l := range ruleLabels {
		rule, ok := rules[string(l)]
		if !ok {
			return nil, fmt.Errorf("%w: no rule for %q", config.ErrInvalidConfig, l)
		}
		rs.rules[l] = rule
	}
	return rs, nil
}

func (rs *RuleScorer) Name() string { return config.ScorerRules }

// Score returns Uniform for an empty time series.
func (rs *RuleScorer) Score(in *Input) (Emotions, error) {
	if in == nil || len(in.Pitch) == 0 {
		return Uniform(), nil
	}

	pitch := common.Mean(in.Pitch)
	energy := common.Mean(in.Energy)

	var scores Emotions
	raw := rs.rawScores(pitch, energy, in.Tempo, in.SpectralCentroid)
	for i, l := range ruleLabels {
		scores.Set(l, raw[i])
	}
	scores.Neutral = max(rs.neutralFloor, 1-common.PopVariance(raw))

	return scores.Normalize(), nil
}

// rawScores returns the unnormalized rule scores in ruleLabels order.
func (rs *RuleScorer) rawScores(pitch, energy, tempo, centroid float64) []float64 {
	out := make([]float64, len(ruleLabels))
	for i, l := range ruleLabels {
		out[i] = rs.ruleScore(rs.rules[l], pitch, energy, tempo, centroid)
	}
	return out
}

func (rs *RuleScorer) ruleScore(rule config.EmotionRule, pitch, energy, tempo, centroid float64) float64 {
	w := rule.Weights
	return w.Pitch*term(pitch, rule.Pitch.Min, rule.Pitch.Max, rule.Invert.Pitch) +
		w.Energy*term(energy, 0, rule.EnergyThreshold, rule.Invert.Energy) +
		w.Tempo*term(tempo, rule.Tempo.Min, rule.Tempo.Max, rule.Invert.Tempo) +
		w.Centroid*term(centroid, rule.Centroid.Min, rule.Centroid.Max, rule.Invert.Centroid)
}

func term(v, lo, hi float64, invert bool) float64 {
	s := common.RangeScore(v, lo, hi)
	if invert {
		return 1 - s
	}
	return s
}
