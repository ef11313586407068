package scoring

import (
	"errors"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-emotion/analysis/config"
	"github.com/RyanBlaney/sonido-emotion/analysis/voice"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

var (
	// ErrModelNotInitialized is returned by the classifier before it has
	// been fitted or loaded.
	ErrModelNotInitialized = errors.New("emotion model not initialized")
	// ErrFeatureDimension is returned when an input vector does not match
	// the classifier's input width.
	ErrFeatureDimension = errors.New("feature vector dimension mismatch")
)

// Input is everything a scorer may look at for one clip.
type Input struct {
	Pitch            []float64
	Energy           []float64
	Spectral         []float64
	SpectralCentroid float64 // Hz
	Tempo            float64 // events per minute
	Voice            voice.Characteristics
}

// Scorer maps clip features to a distribution over Labels. Score must not
// mutate the scorer, so one instance can serve concurrent analyses.
type Scorer interface {
	Score(in *Input) (Emotions, error)
	Name() string
}

// NewFromConfig builds the scorer cfg.Scoring.Scorer names. The classifier
// is loaded from ModelPath when set, otherwise trained on the built-in data.
func NewFromConfig(cfg *config.Config) (Scorer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	sc := cfg.Scoring

	switch sc.Scorer {
	case config.ScorerRules:
		return NewRuleScorer(sc.Rules, sc.NeutralFloor)

	case config.ScorerBaseline:
		return NewBaselineScorer(), nil

	case config.ScorerClassifier:
		model, err := loadOrTrain(sc.Classifier)
		if err != nil {
			return nil, err
		}
		return NewClassifierScorer(model, sc.Classifier.References), nil

	default:
		return nil, fmt.Errorf("unknown scorer %q", sc.Scorer)
	}
}

func loadOrTrain(cc config.ClassifierConfig) (*Classifier, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "scoring",
		"function":  "loadOrTrain",
	})

	if cc.ModelPath == "" {
		model := NewClassifier(cc)
		if err := model.Initialize(); err != nil {
			return nil, err
		}
		return model, nil
	}

	f, err := os.Open(cc.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	model, err := LoadClassifier(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", cc.ModelPath, err)
	}
	logger.Debug("Loaded classifier weights", logging.Fields{"path": cc.ModelPath})
	return model, nil
}
