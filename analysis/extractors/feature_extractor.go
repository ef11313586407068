package extractors

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/algorithms/filters"
	"github.com/RyanBlaney/sonido-emotion/algorithms/spectral"
	"github.com/RyanBlaney/sonido-emotion/algorithms/temporal"
	"github.com/RyanBlaney/sonido-emotion/algorithms/tonal"
	"github.com/RyanBlaney/sonido-emotion/algorithms/windowing"
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// FeatureExtractor turns a mono sample buffer into per-frame pitch, energy
// and zero-crossing series plus clip-level spectral, centroid and tempo
// summaries. It holds no per-call state and is safe for concurrent use.
type FeatureExtractor struct {
	config     *config.Config
	sampleRate int
	workers    int
	logger     logging.Logger

	framer *common.Framer
	window *windowing.Window
	fft    spectral.Transformer

	// Optional whole-clip filters, nil when disabled
	dcRemoval   *filters.DCRemoval
	preEmphasis *filters.PreEmphasis

	// Per-frame algorithms
	pitchDetector *tonal.PitchDetector
	zeroCrossing  *spectral.ZeroCrossingRate
	bands         *spectral.BandReducer

	// Clip-level algorithms
	spectralCentroid *spectral.SpectralCentroid
	tempo            *temporal.TempoEstimation
}

// frameResult is written by exactly one goroutine.
type frameResult struct {
	pitch  float64
	energy float64
	zcr    float64
	bands  []float64
}

// NewFeatureExtractor builds every algorithm the configuration asks for.
// A nil cfg selects config.Default().
func NewFeatureExtractor(cfg *config.Config, sampleRate int) (*FeatureExtractor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	framer, err := common.NewFramer(cfg.Frame.Size, cfg.Frame.Hop)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	window, err := windowing.New(cfg.Frame.Window, cfg.Frame.Size)
	if err != nil {
		return nil, err
	}
	fft, err := spectral.NewTransformer(cfg.Spectral.FFTBackend)
	if err != nil {
		return nil, err
	}
	bands, err := spectral.NewBandReducer(cfg.Spectral.Mode, cfg.Spectral.Bands, cfg.Frame.Size, sampleRate,
		cfg.Spectral.MelLowHz, cfg.Spectral.MelHighHz)
	if err != nil {
		return nil, fmt.Errorf("spectral bands: %w", err)
	}
	pitchDetector, err := tonal.NewPitchDetector(tonal.PitchDetectionParams{
		Method:     cfg.Pitch.Method,
		SampleRate: sampleRate,
		WindowSize: cfg.Frame.Size,
		MinFreq:    cfg.Pitch.MinHz,
		MaxFreq:    cfg.Pitch.MaxHz,
	}, fft)
	if err != nil {
		return nil, fmt.Errorf("pitch detector: %w", err)
	}

	var dcRemoval *filters.DCRemoval
	if cfg.Preprocess.RemoveDC {
		if dcRemoval, err = filters.NewDCRemovalWithCutoff(sampleRate, cfg.Preprocess.DCCutoffHz); err != nil {
			return nil, fmt.Errorf("dc removal: %w", err)
		}
	}
	var preEmphasis *filters.PreEmphasis
	if cfg.Preprocess.PreEmphasis > 0 {
		if preEmphasis, err = filters.NewPreEmphasis(cfg.Preprocess.PreEmphasis); err != nil {
			return nil, fmt.Errorf("pre-emphasis: %w", err)
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger := logging.WithFields(logging.Fields{
		"component":   "feature_extractor",
		"sample_rate": sampleRate,
	})

	minLag, maxLag := pitchDetector.LagRange()
	logger.Debug("Feature extractor configuration", logging.Fields{
		"frame_size":    cfg.Frame.Size,
		"hop_size":      cfg.Frame.Hop,
		"window":        window.GetType(),
		"fft_backend":   fft.Name(),
		"spectral_mode": bands.Mode(),
		"bands":         bands.NumBands(),
		"pitch_method":  pitchDetector.GetParameters().Method,
		"remove_dc":     dcRemoval != nil,
		"pre_emphasis":  cfg.Preprocess.PreEmphasis,
		"min_lag":       minLag,
		"max_lag":       maxLag,
		"workers":       workers,
	})

	return &FeatureExtractor{
		config:           cfg,
		sampleRate:       sampleRate,
		workers:          workers,
		logger:           logger,
		framer:           framer,
		window:           window,
		fft:              fft,
		dcRemoval:        dcRemoval,
		preEmphasis:      preEmphasis,
		pitchDetector:    pitchDetector,
		zeroCrossing:     spectral.NewZeroCrossingRate(),
		bands:            bands,
		spectralCentroid: spectral.NewSpectralCentroid(),
		tempo:            temporal.NewTempoEstimation(cfg.Frame.Hop, sampleRate, cfg.Tempo.Default),
	}, nil
}

// EmptyFeatures returns what ExtractFeatures reports for a clip of numSamples
// samples that holds no complete frame, without building the pitch detector.
// Sample rates too low for the configured pitch range are accepted here.
func EmptyFeatures(cfg *config.Config, sampleRate, numSamples int) (*Features, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	framer, err := common.NewFramer(cfg.Frame.Size, cfg.Frame.Hop)
	if err != nil {
		return nil, err
	}
	if framer.Count(numSamples) > 0 {
		return nil, fmt.Errorf("%d samples hold %d frames", numSamples, framer.Count(numSamples))
	}
	bands, err := spectral.NewBandReducer(cfg.Spectral.Mode, cfg.Spectral.Bands, cfg.Frame.Size, sampleRate,
		cfg.Spectral.MelLowHz, cfg.Spectral.MelHighHz)
	if err != nil {
		return nil, fmt.Errorf("spectral bands: %w", err)
	}

	fe := &FeatureExtractor{
		config:           cfg,
		sampleRate:       sampleRate,
		framer:           framer,
		zeroCrossing:     spectral.NewZeroCrossingRate(),
		bands:            bands,
		spectralCentroid: spectral.NewSpectralCentroid(),
		tempo:            temporal.NewTempoEstimation(cfg.Frame.Hop, sampleRate, cfg.Tempo.Default),
	}
	return fe.aggregate(nil, numSamples), nil
}

// ExtractFeatures analyzes samples. Input shorter than one frame is not an
// error: the series are empty, the spectral vector is all zeros and tempo
// takes its default.
func (fe *FeatureExtractor) ExtractFeatures(samples []float64) (*Features, error) {
	samples = fe.preprocess(samples)
	frames := fe.framer.Frames(samples)

	logger := fe.logger.WithFields(logging.Fields{
		"function": "ExtractFeatures",
		"samples":  len(samples),
		"frames":   len(frames),
	})
	logger.Debug("Starting feature extraction")

	results := make([]frameResult, len(frames))

	var g errgroup.Group
	g.SetLimit(fe.workers)
	for i, frame := range frames {
		g.Go(func() error {
			res, err := fe.analyzeFrame(frame)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error(err, "Frame analysis failed")
		return nil, err
	}

	features := fe.aggregate(results, len(samples))

	logger.Debug("Completed feature extraction", logging.Fields{
		"tempo":             features.Tempo,
		"spectral_centroid": features.SpectralCentroid,
	})
	return features, nil
}

// preprocess returns samples unchanged when no filter is enabled. The caller's
// slice is never written.
func (fe *FeatureExtractor) preprocess(samples []float64) []float64 {
	if fe.dcRemoval != nil {
		samples = fe.dcRemoval.Process(samples)
	}
	if fe.preEmphasis != nil {
		samples = fe.preEmphasis.Process(samples)
	}
	return samples
}

func (fe *FeatureExtractor) analyzeFrame(frame []float64) (frameResult, error) {
	pitch, err := fe.pitchDetector.DetectPitch(frame)
	if err != nil {
		return frameResult{}, err
	}

	windowed := frame
	if !fe.window.IsIdentity() {
		if windowed, err = fe.window.Apply(frame); err != nil {
			return frameResult{}, err
		}
	}
	magnitudes := spectral.Magnitude(fe.fft.Forward(windowed))

	return frameResult{
		pitch:  pitch.Pitch,
		energy: temporal.MeanSquareEnergy(frame),
		zcr:    fe.zeroCrossing.ComputeNormalized(frame),
		bands:  fe.bands.Reduce(magnitudes),
	}, nil
}

// aggregate runs sequentially in frame order so the output does not depend
// on how frames were scheduled.
func (fe *FeatureExtractor) aggregate(results []frameResult, numSamples int) *Features {
	n := len(results)
	features := &Features{
		Pitch:            make([]float64, n),
		Energy:           make([]float64, n),
		ZeroCrossingRate: make([]float64, n),
		Times:            make([]float64, n),
		SpectralFeatures: make([]float64, fe.bands.NumBands()),
		BandFrequencies:  fe.bands.Frequencies(),
		FrameCount:       n,
		Duration:         float64(numSamples) / float64(fe.sampleRate),
		SampleRate:       fe.sampleRate,
	}

	for i, res := range results {
		features.Pitch[i] = res.pitch
		features.Energy[i] = res.energy
		features.ZeroCrossingRate[i] = res.zcr
		features.Times[i] = fe.framer.FrameTime(i, fe.sampleRate)
		for b, v := range res.bands {
			features.SpectralFeatures[b] += v
		}
	}
	if n > 0 {
		for b := range features.SpectralFeatures {
			features.SpectralFeatures[b] /= float64(n)
		}
	}

	features.SpectralCentroid = fe.spectralCentroid.ComputeWithFrequencies(features.SpectralFeatures, features.BandFrequencies)
	features.Tempo = fe.tempo.EstimateTempo(features.Energy)
	features.TempoCategory = fe.tempo.ClassifyTempoCategory(features.Tempo)
	features.MeanZCR = fe.zeroCrossing.Mean(features.ZeroCrossingRate)

	return features
}

// Config returns the configuration the extractor was built with.
func (fe *FeatureExtractor) Config() *config.Config {
	return fe.config
}
