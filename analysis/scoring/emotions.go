package scoring

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Label names one emotion.
type Label string

const (
	Neutral Label = "neutral"
	Happy   Label = "happy"
	Sad     Label = "sad"
	Angry   Label = "angry"
	Fearful Label = "fearful"
)

// Labels is the closed label set in canonical order. Ties are broken in
// this order wherever labels are ranked.
var Labels = []Label{Neutral, Happy, Sad, Angry, Fearful}

func (l Label) String() string { return string(l) }

// ParseLabel accepts one of the five label names.
func ParseLabel(name string) (Label, error) {
	for _, l := range Labels {
		if string(l) == name {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown emotion label %q", name)
}

// Emotions is a score per label. Every label is always present.
type Emotions struct {
	Neutral float64 `json:"neutral"`
	Happy   float64 `json:"happy"`
	Sad     float64 `json:"sad"`
	Angry   float64 `json:"angry"`
	Fearful float64 `json:"fearful"`
}

// Uniform returns 0.2 for every label.
func Uniform() Emotions {
	p := 1.0 / float64(len(Labels))
	return Emotions{p, p, p, p, p}
}

// FromValues builds Emotions from values in Labels order.
func FromValues(values []float64) (Emotions, error) {
	if len(values) != len(Labels) {
		return Emotions{}, fmt.Errorf("need %d emotion values, got %d", len(Labels), len(values))
	}
	var e Emotions
	for i, l := range Labels {
		e.Set(l, values[i])
	}
	return e, nil
}

// Get returns the score for l, 0 for an unknown label.
func (e Emotions) Get(l Label) float64 {
	switch l {
	case Neutral:
		return e.Neutral
	case Happy:
		return e.Happy
	case Sad:
		return e.Sad
	case Angry:
		return e.Angry
	case Fearful:
		return e.Fearful
	}
	return 0
}

// Set assigns the score for l. Unknown labels are ignored.
func (e *Emotions) Set(l Label, v float64) {
	switch l {
	case Neutral:
		e.Neutral = v
	case Happy:
		e.Happy = v
	case Sad:
		e.Sad = v
	case Angry:
		e.Angry = v
	case Fearful:
		e.Fearful = v
	}
}

// Values returns the scores in Labels order.
func (e Emotions) Values() []float64 {
	return []float64{e.Neutral, e.Happy, e.Sad, e.Angry, e.Fearful}
}

// Sum adds all five scores.
func (e Emotions) Sum() float64 {
	return e.Neutral + e.Happy + e.Sad + e.Angry + e.Fearful
}

// Normalize divides every score by the sum. A distribution with a
// non-positive or non-finite sum becomes Uniform.
func (e Emotions) Normalize() Emotions {
	sum := e.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return Uniform()
	}
	return Emotions{
		Neutral: e.Neutral / sum,
		Happy:   e.Happy / sum,
		Sad:     e.Sad / sum,
		Angry:   e.Angry / sum,
		Fearful: e.Fearful / sum,
	}
}

// IsSimplex reports whether every score is in [0, 1] and the scores sum to
// 1 within tol.
func (e Emotions) IsSimplex(tol float64) bool {
	for _, v := range e.Values() {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return math.Abs(e.Sum()-1) <= tol
}

// Confidence is max/sum*100: how strongly the top label dominates.
// It is 0 when every score is 0.
func Confidence(e Emotions) float64 {
	sum := e.Sum()
	if sum <= 0 {
		return 0
	}
	return slices.Max(e.Values()) / sum * 100
}

// LabelScore pairs a label with its score.
type LabelScore struct {
	Label Label   `json:"label"`
	Score float64 `json:"score"`
}

// Rank orders labels by descending score, ties in Labels order.
func Rank(e Emotions) []LabelScore {
	ranked := make([]LabelScore, len(Labels))
	for i, l := range Labels {
		ranked[i] = LabelScore{Label: l, Score: e.Get(l)}
	}
	slices.SortStableFunc(ranked, func(a, b LabelScore) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked
}

// Dominant returns the top label and, when the runner-up scores at least
// minConfidence, the runner-up as the secondary label.
func Dominant(e Emotions, minConfidence float64) (Label, *Label) {
	ranked := Rank(e)
	primary := ranked[0].Label
	if ranked[1].Score >= minConfidence {
		secondary := ranked[1].Label
		return primary, &secondary
	}
	return primary, nil
}
