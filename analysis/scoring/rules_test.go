package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
)

func constantInput(pitch, energy, tempo, centroid float64, frames int) *Input {
	in := &Input{
		Pitch:            make([]float64, frames),
		Energy:           make([]float64, frames),
		Tempo:            tempo,
		SpectralCentroid: centroid,
	}
	for i := range frames {
		in.Pitch[i] = pitch
		in.Energy[i] = energy
	}
	return in
}

func newDefaultRuleScorer(t *testing.T) *RuleScorer {
	t.Helper()
	rs, err := NewRuleScorer(config.DefaultRules(), config.DefaultNeutralFloor)
	if err != nil {
		t.Fatalf("NewRuleScorer(DefaultRules): %v", err)
	}
	return rs
}

func TestRuleScorerRawScores(t *testing.T) {
	t.Parallel()
	rs := newDefaultRuleScorer(t)
	raw := rs.rawScores(300, 0.6, 150, 3000)
	if len(raw) != len(ruleLabels) {
		t.Fatalf("got %d raw scores", len(raw))
	}

	want := map[Label]float64{
		// 0.3*0.5 + 0.3*1 + 0.2*0.5 + 0.2*0.5
		Happy: 0.65,
		// pitch, energy and tempo saturate then invert to 0; centroid saturates
		Sad: 0.2,
		// 0.25*0.75 + 0.35*0.75 + 0.2*(10/60) + 0
		Angry: 0.25*0.75 + 0.35*0.75 + 0.2*(10.0/60),
		// 0.3*1 + 0.25*1 + 0.25*(50/60) + 0.2*1
		Fearful: 0.3 + 0.25 + 0.25*(50.0/60) + 0.2,
	}
	for i, l := range ruleLabels {
		if math.Abs(raw[i]-want[l]) > 1e-9 {
			t.Errorf("%s raw = %v, want %v", l, raw[i], want[l])
		}
	}
}

func TestRuleScorerNormalizesWithNeutral(t *testing.T) {
	t.Parallel()
	rs := newDefaultRuleScorer(t)
	e, err := rs.Score(constantInput(300, 0.6, 150, 3000, 10))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	four := rs.rawScores(300, 0.6, 150, 3000)
	neutral := max(0.1, 1-common.PopVariance(four))
	total := neutral + common.Sum(four)

	if math.Abs(e.Neutral-neutral/total) > 1e-12 || math.Abs(e.Happy-four[0]/total) > 1e-12 {
		t.Errorf("got %+v, want neutral %v happy %v", e, neutral/total, four[0]/total)
	}
	if !e.IsSimplex(1e-6) {
		t.Errorf("%+v is not a distribution", e)
	}
}

func TestRuleScorerEmptySeries(t *testing.T) {
	t.Parallel()
	rs := newDefaultRuleScorer(t)
	for _, in := range []*Input{nil, {}} {
		e, err := rs.Score(in)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if e != Uniform() {
			t.Errorf("empty input scored %+v, want uniform", e)
		}
	}
}

func TestRuleScorerSimplexAndDeterminism(t *testing.T) {
	t.Parallel()
	rs := newDefaultRuleScorer(t)
	for _, pitch := range []float64{0, 80, 220, 500, 1600} {
		for _, energy := range []float64{0, 0.05, 0.5, 3} {
			for _, tempo := range []float64{0, 75, 120, 400} {
				for _, centroid := range []float64{0, 1000, 3500, 10000} {
					in := constantInput(pitch, energy, tempo, centroid, 4)
					a, err := rs.Score(in)
					if err != nil {
						t.Fatalf("Score: %v", err)
					}
					if !a.IsSimplex(1e-6) {
						t.Fatalf("%+v not a distribution for p=%v e=%v t=%v c=%v", a, pitch, energy, tempo, centroid)
					}
					b, _ := rs.Score(in)
					if a != b {
						t.Fatalf("repeated scoring differs: %+v vs %+v", a, b)
					}
				}
			}
		}
	}
}

func TestRuleScorerLowArousalFavoursSad(t *testing.T) {
	t.Parallel()
	rs := newDefaultRuleScorer(t)
	e, err := rs.Score(constantInput(90, 0.01, 55, 1400, 8))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for _, l := range []Label{Happy, Angry, Fearful} {
		if e.Sad <= e.Get(l) {
			t.Errorf("sad %v not above %s %v", e.Sad, l, e.Get(l))
		}
	}
}

func TestNewRuleScorerMissingRule(t *testing.T) {
	t.Parallel()
	rules := config.DefaultRules()
	delete(rules, "fearful")
	if _, err := NewRuleScorer(rules, 0.1); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBaselineScorer(t *testing.T) {
	t.Parallel()
	bs := NewBaselineScorer()
	if bs.Name() != config.ScorerBaseline {
		t.Errorf("name = %q", bs.Name())
	}

	e, err := bs.Score(nil)
	if err != nil || e != Uniform() {
		t.Errorf("empty input: %+v, %v", e, err)
	}

	in := constantInput(220, 0.3, 120, 2000, 5)
	in.Voice.PitchMean = 220
	in.Voice.EnergyMean = 0.3
	in.Voice.VoiceQuality = 0.7
	in.Voice.Clarity = 0.9
	in.Voice.Stability = 0.2

	a, err := bs.Score(in)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !a.IsSimplex(1e-6) {
		t.Errorf("%+v is not a distribution", a)
	}
	if b, _ := bs.Score(in); a != b {
		t.Error("baseline scorer is not deterministic")
	}
}

func TestNormalizePitch(t *testing.T) {
	t.Parallel()
	if normalizePitch(50) != 0 || normalizePitch(10) != 0 {
		t.Error("pitch at or below 50 Hz should map to 0")
	}
	if math.Abs(normalizePitch(1600)-1) > 1e-12 || math.Abs(normalizePitch(5000)-1) > 1e-12 {
		t.Error("pitch at or above 1600 Hz should map to 1")
	}
}
