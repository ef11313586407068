package scoring

import (
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
)

// ClassifierScorer adapts a trained Classifier to the Scorer interface.
type ClassifierScorer struct {
	model      *Classifier
	references config.ClassifierReference
}

// NewClassifierScorer wraps model. refs scale absolute measurements onto the
// relative scale the model was trained on.
func NewClassifierScorer(model *Classifier, refs config.ClassifierReference) *ClassifierScorer {
	return &ClassifierScorer{model: model, references: refs}
}

func (cs *ClassifierScorer) Name() string { return config.ScorerClassifier }

// Model returns the wrapped classifier.
func (cs *ClassifierScorer) Model() *Classifier { return cs.model }

// Score fails with ErrModelNotInitialized for an untrained model, even when
// the time series is empty.
func (cs *ClassifierScorer) Score(in *Input) (Emotions, error) {
	if cs.model == nil || !cs.model.Trained() {
		return Emotions{}, ErrModelNotInitialized
	}
	if in == nil || len(in.Pitch) == 0 {
		return Uniform(), nil
	}
	return cs.model.Predict(FeatureVector(in, cs.references))
}

// FeatureVector builds the classifier input
// [pitchMean/ref, energyMean/ref, tempo/ref, clarity/ref, stability/ref].
// A non-positive reference leaves that feature unscaled.
func FeatureVector(in *Input, refs config.ClassifierReference) []float64 {
	ratio := func(v, ref float64) float64 {
		if ref <= 0 {
			return v
		}
		return v / ref
	}
	return []float64{
		ratio(in.Voice.PitchMean, refs.Pitch),
		ratio(in.Voice.EnergyMean, refs.Energy),
		ratio(in.Tempo, refs.Tempo),
		ratio(in.Voice.Clarity, refs.Clarity),
		ratio(in.Voice.Stability, refs.Stability),
	}
}
