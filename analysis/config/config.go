package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-emotion/algorithms/spectral"
	"github.com/RyanBlaney/sonido-emotion/algorithms/tonal"
	"github.com/RyanBlaney/sonido-emotion/algorithms/windowing"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Scorer names.
const (
	ScorerRules      = "rules"
	ScorerClassifier = "classifier"
	ScorerBaseline   = "baseline"
)

// DefaultFileName is searched for in the working directory when Load is
// given an empty path.
const DefaultFileName = "sonido-emotion.yaml"

// Defaults for the analysis pipeline.
const (
	DefaultFrameSize     = 2048
	DefaultHopSize       = 512
	DefaultMelBands      = 40
	DefaultMinPitchHz    = 60.0
	DefaultMaxPitchHz    = 1600.0
	DefaultTempo         = 120.0
	DefaultMinConfidence = 0.4
	DefaultNeutralFloor  = 0.1
	DefaultDCCutoffHz    = 20.0
)

// Config holds every tunable of the pipeline. The zero value is not usable;
// start from Default or Load.
type Config struct {
	LogLevel string `yaml:"log_level" json:"logLevel"`
	// Workers bounds per-frame parallelism. 0 means runtime.NumCPU().
	Workers    int              `yaml:"workers" json:"workers"`
	Preprocess PreprocessConfig `yaml:"preprocess" json:"preprocess"`
	Frame      FrameConfig      `yaml:"frame" json:"frame"`
	Spectral   SpectralConfig   `yaml:"spectral" json:"spectral"`
	Pitch      PitchConfig      `yaml:"pitch" json:"pitch"`
	Tempo      TempoConfig      `yaml:"tempo" json:"tempo"`
	Scoring    ScoringConfig    `yaml:"scoring" json:"scoring"`
}

// PreprocessConfig filters the whole clip before framing. Both stages are
// off by default.
type PreprocessConfig struct {
	RemoveDC   bool    `yaml:"remove_dc" json:"removeDC"`
	DCCutoffHz float64 `yaml:"dc_cutoff_hz" json:"dcCutoffHz"`
	// PreEmphasis is the coefficient α; 0 disables the stage.
	PreEmphasis float64 `yaml:"pre_emphasis" json:"preEmphasis"`
}

// FrameConfig controls framing and the analysis window.
type FrameConfig struct {
	Size   int    `yaml:"size" json:"size"`
	Hop    int    `yaml:"hop" json:"hop"`
	Window string `yaml:"window" json:"window"`
}

// SpectralConfig controls the clip-level band vector.
type SpectralConfig struct {
	Bands      int    `yaml:"bands" json:"bands"`
	Mode       string `yaml:"mode" json:"mode"`
	FFTBackend string `yaml:"fft_backend" json:"fftBackend"`
	// MelLowHz and MelHighHz bound the filterbank mode. MelHighHz 0 means Nyquist.
	MelLowHz  float64 `yaml:"mel_low_hz" json:"melLowHz"`
	MelHighHz float64 `yaml:"mel_high_hz" json:"melHighHz"`
}

// PitchConfig controls the autocorrelation pitch search.
type PitchConfig struct {
	MinHz  float64 `yaml:"min_hz" json:"minHz"`
	MaxHz  float64 `yaml:"max_hz" json:"maxHz"`
	Method string  `yaml:"method" json:"method"`
}

// TempoConfig controls peak-count tempo.
type TempoConfig struct {
	Default float64 `yaml:"default" json:"default"`
}

// ScoringConfig selects and parameterizes the emotion scorer.
type ScoringConfig struct {
	Scorer        string  `yaml:"scorer" json:"scorer"`
	MinConfidence float64 `yaml:"min_confidence" json:"minConfidence"`
	NeutralFloor  float64 `yaml:"neutral_floor" json:"neutralFloor"`
	// Rules is keyed by emotion label. A rule given in a config file replaces
	// the default rule for that label entirely.
	Rules      map[string]EmotionRule `yaml:"rules" json:"rules"`
	Classifier ClassifierConfig       `yaml:"classifier" json:"classifier"`
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// RuleWeights weight the four per-feature terms of a rule.
type RuleWeights struct {
	Pitch    float64 `yaml:"pitch" json:"pitch"`
	Energy   float64 `yaml:"energy" json:"energy"`
	Tempo    float64 `yaml:"tempo" json:"tempo"`
	Centroid float64 `yaml:"centroid" json:"centroid"`
}

// RuleInversions flip a term to 1-term, so lower values score higher.
type RuleInversions struct {
	Pitch    bool `yaml:"pitch" json:"pitch"`
	Energy   bool `yaml:"energy" json:"energy"`
	Tempo    bool `yaml:"tempo" json:"tempo"`
	Centroid bool `yaml:"centroid" json:"centroid"`
}

// EmotionRule scores one emotion from clip-level features.
type EmotionRule struct {
	Pitch           Range          `yaml:"pitch" json:"pitch"`
	EnergyThreshold float64        `yaml:"energy_threshold" json:"energyThreshold"`
	Tempo           Range          `yaml:"tempo" json:"tempo"`
	Centroid        Range          `yaml:"centroid" json:"centroid"`
	Weights         RuleWeights    `yaml:"weights" json:"weights"`
	Invert          RuleInversions `yaml:"invert" json:"invert"`
}

// ClassifierConfig parameterizes the learned scorer.
type ClassifierConfig struct {
	// ModelPath, when set, loads saved weights instead of training.
	ModelPath    string              `yaml:"model_path" json:"modelPath"`
	Hidden       []int               `yaml:"hidden" json:"hidden"`
	Dropout      float64             `yaml:"dropout" json:"dropout"`
	LearningRate float64             `yaml:"learning_rate" json:"learningRate"`
	Epochs       int                 `yaml:"epochs" json:"epochs"`
	BatchSize    int                 `yaml:"batch_size" json:"batchSize"`
	Seed         uint64              `yaml:"seed" json:"seed"`
	References   ClassifierReference `yaml:"references" json:"references"`
}

// ClassifierReference values map absolute measurements onto the relative
// scale of the training data, where 1.0 is typical speech.
type ClassifierReference struct {
	Pitch     float64 `yaml:"pitch" json:"pitch"`
	Energy    float64 `yaml:"energy" json:"energy"`
	Tempo     float64 `yaml:"tempo" json:"tempo"`
	Clarity   float64 `yaml:"clarity" json:"clarity"`
	Stability float64 `yaml:"stability" json:"stability"`
}

// EmotionLabels lists the labels that carry rules.
var EmotionLabels = []string{"happy", "sad", "angry", "fearful"}

// DefaultRules returns the built-in rule table.
func DefaultRules() map[string]EmotionRule {
	return map[string]EmotionRule{
		"happy": {
			Pitch:           Range{200, 400},
			EnergyThreshold: 0.6,
			Tempo:           Range{120, 180},
			Centroid:        Range{2000, 4000},
			Weights:         RuleWeights{0.3, 0.3, 0.2, 0.2},
		},
		"sad": {
			Pitch:           Range{100, 250},
			EnergyThreshold: 0.3,
			Tempo:           Range{60, 90},
			Centroid:        Range{500, 1500},
			Weights:         RuleWeights{0.3, 0.3, 0.2, 0.2},
			Invert:          RuleInversions{Pitch: true, Energy: true, Tempo: true},
		},
		"angry": {
			Pitch:           Range{150, 350},
			EnergyThreshold: 0.8,
			Tempo:           Range{140, 200},
			Centroid:        Range{3000, 5000},
			Weights:         RuleWeights{0.25, 0.35, 0.2, 0.2},
		},
		"fearful": {
			Pitch:           Range{200, 300},
			EnergyThreshold: 0.4,
			Tempo:           Range{100, 160},
			Centroid:        Range{1500, 3000},
			Weights:         RuleWeights{0.3, 0.25, 0.25, 0.2},
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Workers:  0,
		Preprocess: PreprocessConfig{
			RemoveDC:    false,
			DCCutoffHz:  DefaultDCCutoffHz,
			PreEmphasis: 0,
		},
		Frame: FrameConfig{
			Size:   DefaultFrameSize,
			Hop:    DefaultHopSize,
			Window: windowing.Rectangular,
		},
		Spectral: SpectralConfig{
			Bands:      DefaultMelBands,
			Mode:       spectral.BandModeBins,
			FFTBackend: spectral.BackendGoDSP,
			MelLowHz:   0,
			MelHighHz:  0,
		},
		Pitch: PitchConfig{
			MinHz:  DefaultMinPitchHz,
			MaxHz:  DefaultMaxPitchHz,
			Method: tonal.PitchMethodDirect,
		},
		Tempo: TempoConfig{Default: DefaultTempo},
		Scoring: ScoringConfig{
			Scorer:        ScorerRules,
			MinConfidence: DefaultMinConfidence,
			NeutralFloor:  DefaultNeutralFloor,
			Rules:         DefaultRules(),
			Classifier: ClassifierConfig{
				Hidden:       []int{32, 16},
				Dropout:      0.2,
				LearningRate: 0.001,
				Epochs:       100,
				BatchSize:    4,
				Seed:         1,
				References: ClassifierReference{
					Pitch:     165,
					Energy:    0.01,
					Tempo:     DefaultTempo,
					Clarity:   1,
					Stability: 1,
				},
			},
		},
	}
}

// Load reads a YAML configuration on top of the defaults. An empty path
// searches for DefaultFileName and falls back to defaults when it is absent;
// an explicit path must exist. Environment overrides are applied last, then
// the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	logger := logging.WithFields(logging.Fields{
		"component": "config",
		"function":  "Load",
	})

	if path == "" {
		candidates := []string{
			DefaultFileName,
			"config/" + DefaultFileName,
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debug("Loaded configuration file", logging.Fields{"path": path})
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	logger := logging.WithFields(logging.Fields{
		"component": "config",
		"function":  "applyEnvOverrides",
	})

	ints := map[string]*int{
		"SONIDO_FRAME_SIZE": &c.Frame.Size,
		"SONIDO_HOP_SIZE":   &c.Frame.Hop,
		"SONIDO_MEL_BANDS":  &c.Spectral.Bands,
		"SONIDO_WORKERS":    &c.Workers,
	}
	for name, dst := range ints {
		val, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			logger.Warn("Ignoring non-integer environment override", logging.Fields{"env": name, "value": val})
			continue
		}
		*dst = n
		logger.Debug("Overriding from environment", logging.Fields{"env": name, "value": n})
	}

	if val, ok := os.LookupEnv("SONIDO_SCORER"); ok {
		c.Scoring.Scorer = val
		logger.Debug("Overriding from environment", logging.Fields{"env": "SONIDO_SCORER", "value": val})
	}
	if val, ok := os.LookupEnv("SONIDO_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Debug("Overriding from environment", logging.Fields{"env": "SONIDO_LOG_LEVEL", "value": val})
	}
}

// Validate checks every field and reports all problems at once, wrapped in
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		add("log_level %q is not one of debug, info, warn, error, fatal", c.LogLevel)
	}
	if c.Workers < 0 {
		add("workers must be >= 0, got %d", c.Workers)
	}

	if c.Preprocess.RemoveDC && c.Preprocess.DCCutoffHz <= 0 {
		add("preprocess.dc_cutoff_hz must be positive, got %g", c.Preprocess.DCCutoffHz)
	}
	if c.Preprocess.PreEmphasis < 0 || c.Preprocess.PreEmphasis >= 1 {
		add("preprocess.pre_emphasis must be in [0, 1), got %g", c.Preprocess.PreEmphasis)
	}

	if c.Frame.Size < 2 {
		add("frame.size must be at least 2, got %d", c.Frame.Size)
	}
	if c.Frame.Hop <= 0 || c.Frame.Hop > c.Frame.Size {
		add("frame.hop must be in (0, frame.size], got %d", c.Frame.Hop)
	}
	if c.Frame.Window != "" {
		if _, err := windowing.New(c.Frame.Window, 2); err != nil {
			add("frame.window: %v", err)
		}
	}

	if c.Spectral.Bands <= 0 {
		add("spectral.bands must be positive, got %d", c.Spectral.Bands)
	}
	switch c.Spectral.Mode {
	case "", spectral.BandModeBins, spectral.BandModeFilterbank:
	default:
		add("spectral.mode %q is not %q or %q", c.Spectral.Mode, spectral.BandModeBins, spectral.BandModeFilterbank)
	}
	if _, err := spectral.NewTransformer(c.Spectral.FFTBackend); err != nil {
		add("spectral.fft_backend: %v", err)
	}
	if c.Spectral.MelLowHz < 0 || (c.Spectral.MelHighHz > 0 && c.Spectral.MelHighHz <= c.Spectral.MelLowHz) {
		add("spectral mel range [%g, %g] is empty", c.Spectral.MelLowHz, c.Spectral.MelHighHz)
	}

	if c.Pitch.MinHz <= 0 || c.Pitch.MaxHz <= c.Pitch.MinHz {
		add("pitch range [%g, %g] Hz is invalid", c.Pitch.MinHz, c.Pitch.MaxHz)
	}
	switch c.Pitch.Method {
	case "", tonal.PitchMethodDirect, tonal.PitchMethodFFT:
	default:
		add("pitch.method %q is not %q or %q", c.Pitch.Method, tonal.PitchMethodDirect, tonal.PitchMethodFFT)
	}

	if c.Tempo.Default <= 0 {
		add("tempo.default must be positive, got %g", c.Tempo.Default)
	}

	problems = append(problems, c.Scoring.validate()...)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}

func (s *ScoringConfig) validate() []error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	switch s.Scorer {
	case ScorerRules, ScorerClassifier, ScorerBaseline:
	default:
		add("scoring.scorer %q is not one of %s, %s, %s", s.Scorer, ScorerRules, ScorerClassifier, ScorerBaseline)
	}
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		add("scoring.min_confidence must be in [0, 1], got %g", s.MinConfidence)
	}
	if s.NeutralFloor < 0 || s.NeutralFloor > 1 {
		add("scoring.neutral_floor must be in [0, 1], got %g", s.NeutralFloor)
	}

	for _, label := range EmotionLabels {
		rule, ok := s.Rules[label]
		if !ok {
			add("scoring.rules is missing %q", label)
			continue
		}
		for name, r := range map[string]Range{"pitch": rule.Pitch, "tempo": rule.Tempo, "centroid": rule.Centroid} {
			if r.Max < r.Min {
				add("scoring.rules.%s.%s max %g < min %g", label, name, r.Max, r.Min)
			}
		}
		if rule.EnergyThreshold <= 0 {
			add("scoring.rules.%s.energy_threshold must be positive", label)
		}
		w := rule.Weights
		if w.Pitch < 0 || w.Energy < 0 || w.Tempo < 0 || w.Centroid < 0 {
			add("scoring.rules.%s.weights must be non-negative", label)
		}
	}
	for label := range s.Rules {
		known := false
		for _, l := range EmotionLabels {
			known = known || l == label
		}
		if !known {
			add("scoring.rules has unknown label %q", label)
		}
	}

	cc := s.Classifier
	if len(cc.Hidden) == 0 {
		add("scoring.classifier.hidden needs at least one layer")
	}
	for i, h := range cc.Hidden {
		if h <= 0 {
			add("scoring.classifier.hidden[%d] must be positive, got %d", i, h)
		}
	}
	if cc.Dropout < 0 || cc.Dropout >= 1 {
		add("scoring.classifier.dropout must be in [0, 1), got %g", cc.Dropout)
	}
	if cc.LearningRate <= 0 {
		add("scoring.classifier.learning_rate must be positive, got %g", cc.LearningRate)
	}
	if cc.Epochs <= 0 || cc.BatchSize <= 0 {
		add("scoring.classifier epochs and batch_size must be positive")
	}
	ref := cc.References
	if ref.Pitch <= 0 || ref.Energy <= 0 || ref.Tempo <= 0 || ref.Clarity <= 0 || ref.Stability <= 0 {
		add("scoring.classifier.references must all be positive")
	}

	return problems
}
