package analysis

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
	"github.com/RyanBlaney/sonido-emotion/analysis/extractors"
	"github.com/RyanBlaney/sonido-emotion/analysis/scoring"
	"github.com/RyanBlaney/sonido-emotion/analysis/voice"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// distributionTolerance bounds |sum - 1| for a valid emotion distribution.
const distributionTolerance = 1e-6

// speakerIDLength is the number of hex digits kept from the sample digest.
const speakerIDLength = 12

// Analyzer runs the full pipeline: framing, feature extraction, voice
// characteristics and emotion scoring. It keeps no per-call state apart from
// a cache of extractors per sample rate, so one Analyzer can serve
// concurrent calls as long as its scorer is read-only while scoring.
type Analyzer struct {
	config *config.Config
	scorer scoring.Scorer
	logger logging.Logger

	mu         sync.Mutex
	extractors map[int]*extractors.FeatureExtractor
}

// NewAnalyzer validates cfg and pairs it with scorer. A nil cfg selects
// config.Default(); a nil scorer selects the rule scorer built from cfg.
func NewAnalyzer(cfg *config.Config, scorer scoring.Scorer) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if _, err := common.NewFramer(cfg.Frame.Size, cfg.Frame.Hop); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if scorer == nil {
		rs, err := scoring.NewRuleScorer(cfg.Scoring.Rules, cfg.Scoring.NeutralFloor)
		if err != nil {
			return nil, err
		}
		scorer = rs
	}

	return &Analyzer{
		config: cfg,
		scorer: scorer,
		logger: logging.WithFields(logging.Fields{
			"component": "emotion_analyzer",
			"scorer":    scorer.Name(),
		}),
		extractors: make(map[int]*extractors.FeatureExtractor),
	}, nil
}

// Analyze scores one mono clip. It returns either a complete result or an
// error. A clip shorter than one frame yields the default result: no time
// series, neutral characteristics and a uniform distribution.
func (a *Analyzer) Analyze(samples []float64, sampleRate int) (*AnalysisResult, error) {
	logger := a.logger.WithFields(logging.Fields{
		"function":    "Analyze",
		"samples":     len(samples),
		"sample_rate": sampleRate,
	})

	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	if ok, idx := common.AllFinite(samples); !ok {
		return nil, fmt.Errorf("%w at index %d", ErrNonFiniteSample, idx)
	}

	features, err := a.extractFeatures(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	characteristics, err := voice.Calculate(features.Pitch, features.Energy)
	if err != nil {
		return nil, err
	}
	if err := checkFinite(features, characteristics); err != nil {
		return nil, err
	}

	emotions := scoring.Uniform()
	if features.FrameCount > 0 {
		emotions, err = a.scorer.Score(&scoring.Input{
			Pitch:            features.Pitch,
			Energy:           features.Energy,
			Spectral:         features.SpectralFeatures,
			SpectralCentroid: features.SpectralCentroid,
			Tempo:            features.Tempo,
			Voice:            characteristics,
		})
		if err != nil {
			return nil, fmt.Errorf("%s scorer failed: %w", a.scorer.Name(), err)
		}
	} else {
		logger.Warn("Clip shorter than one frame, returning default result", logging.Fields{
			"frame_size": a.config.Frame.Size,
		})
	}

	emotions, err = finalizeDistribution(emotions)
	if err != nil {
		return nil, err
	}

	primary, secondary := scoring.Dominant(emotions, a.config.Scoring.MinConfidence)

	result := &AnalysisResult{
		SpeakerProfile: SpeakerProfile{
			ID:              speakerID(samples, sampleRate),
			Confidence:      scoring.Confidence(emotions),
			Characteristics: characteristics,
		},
		Emotions:         emotions,
		TimeSeriesData:   newTimeSeries(features),
		PrimaryEmotion:   primary,
		SecondaryEmotion: secondary,
		Features:         newFeatureSummary(features),
		Scorer:           a.scorer.Name(),
	}

	logger.Debug("Analysis complete", logging.Fields{
		"frames":     features.FrameCount,
		"primary":    primary,
		"confidence": result.SpeakerProfile.Confidence,
	})
	return result, nil
}

// Config returns the configuration the analyzer was built with.
func (a *Analyzer) Config() *config.Config {
	return a.config
}

// Scorer returns the scorer in use.
func (a *Analyzer) Scorer() scoring.Scorer {
	return a.scorer
}

// extractFeatures takes the short-clip path before building an extractor, so
// an empty buffer gets the default result at any positive sample rate.
func (a *Analyzer) extractFeatures(samples []float64, sampleRate int) (*extractors.Features, error) {
	if len(samples) < a.config.Frame.Size {
		features, err := extractors.EmptyFeatures(a.config, sampleRate, len(samples))
		if err != nil {
			return nil, fmt.Errorf("feature extraction failed: %w", err)
		}
		return features, nil
	}

	extractor, err := a.extractorFor(sampleRate)
	if err != nil {
		return nil, err
	}
	features, err := extractor.ExtractFeatures(samples)
	if err != nil {
		return nil, fmt.Errorf("feature extraction failed: %w", err)
	}
	return features, nil
}

func (a *Analyzer) extractorFor(sampleRate int) (*extractors.FeatureExtractor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if fe, ok := a.extractors[sampleRate]; ok {
		return fe, nil
	}
	fe, err := extractors.NewFeatureExtractor(a.config, sampleRate)
	if err != nil {
		return nil, err
	}
	a.extractors[sampleRate] = fe
	return fe, nil
}

// finalizeDistribution rejects negative or non-finite scores, then
// normalizes and checks the result sums to 1.
func finalizeDistribution(e scoring.Emotions) (scoring.Emotions, error) {
	for i, v := range e.Values() {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return scoring.Emotions{}, fmt.Errorf("%w: %s = %v", ErrInvalidDistribution, scoring.Labels[i], v)
		}
	}
	if e.Sum() <= 0 {
		return scoring.Emotions{}, fmt.Errorf("%w: all scores are zero", ErrInvalidDistribution)
	}

	e = e.Normalize()
	if !e.IsSimplex(distributionTolerance) {
		return scoring.Emotions{}, fmt.Errorf("%w: scores sum to %v", ErrInvalidDistribution, e.Sum())
	}
	return e, nil
}

// checkFinite rejects measurements that overflowed even though every sample
// was finite, so a result always encodes as JSON.
func checkFinite(f *extractors.Features, c voice.Characteristics) error {
	checks := []struct {
		name   string
		values []float64
	}{
		{"pitch", f.Pitch},
		{"energy", f.Energy},
		{"zcr", f.ZeroCrossingRate},
		{"spectral", f.SpectralFeatures},
		{"clip", []float64{
			f.SpectralCentroid, f.Tempo, f.MeanZCR,
			c.PitchMean, c.PitchRange[0], c.PitchRange[1],
			c.VoiceQuality, c.Clarity, c.Stability,
			c.EnergyMean, c.PitchVariance, c.EnergyVariance,
		}},
	}
	for _, check := range checks {
		if ok, idx := common.AllFinite(check.values); !ok {
			return fmt.Errorf("%w: %s[%d]", ErrNonFiniteFeature, check.name, idx)
		}
	}
	return nil
}

// speakerID digests the sample rate and the exact sample bits, so identical
// clips always share an ID.
func speakerID(samples []float64, sampleRate int) string {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(sampleRate))
	h.Write(buf[:])
	for _, s := range samples {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s))
		h.Write(buf[:])
	}
	return "SP-" + hex.EncodeToString(h.Sum(nil))[:speakerIDLength]
}
