package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/algorithms/spectral"
)

// Autocorrelation strategies. Both produce the same ACF up to rounding.
const (
	// PitchMethodDirect sums x[i]*x[i+k] for every candidate lag.
	PitchMethodDirect = "direct"
	// PitchMethodFFT computes the ACF as the inverse FFT of the zero-padded
	// power spectrum (Wiener-Khinchin).
	PitchMethodFFT = "fft"
)

// PitchDetectionParams contains parameters for pitch detection
type PitchDetectionParams struct {
	Method     string  `json:"method"`
	SampleRate int     `json:"sample_rate"`
	WindowSize int     `json:"window_size"`
	MinFreq    float64 `json:"min_freq"` // lowest detectable pitch (Hz)
	MaxFreq    float64 `json:"max_freq"` // highest detectable pitch (Hz)
}

// PitchDetectionResult holds the outcome for one frame.
type PitchDetectionResult struct {
	Pitch       float64 `json:"pitch"`       // sampleRate / Lag (Hz)
	Lag         int     `json:"lag"`         // winning lag in samples
	Correlation float64 `json:"correlation"` // ACF value at Lag
	Clarity     float64 `json:"clarity"`     // ACF[Lag]/ACF[0], 0 for silence
}

// PitchDetector estimates the fundamental frequency of a frame as the
// sample rate divided by the lag that maximizes the autocorrelation.
//
// The lag search covers [floor(sr/MaxFreq), floor(sr/MinFreq)], clipped to
// WindowSize-1. The first maximum in that range wins, so a silent frame
// reports the shortest lag.
//
// References:
// - Rabiner, L.R. (1977). "On the use of autocorrelation analysis for pitch detection"
type PitchDetector struct {
	params PitchDetectionParams
	minLag int
	maxLag int
	fft    spectral.Transformer
}

// NewPitchDetector validates params and precomputes the lag range. fft is
// only used by PitchMethodFFT; nil selects the go-dsp backend.
func NewPitchDetector(params PitchDetectionParams, fft spectral.Transformer) (*PitchDetector, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", params.SampleRate)
	}
	if params.WindowSize < 2 {
		return nil, fmt.Errorf("window size must be at least 2, got %d", params.WindowSize)
	}
	if params.MinFreq <= 0 || params.MaxFreq <= params.MinFreq {
		return nil, fmt.Errorf("invalid pitch range [%g, %g] Hz", params.MinFreq, params.MaxFreq)
	}

	switch params.Method {
	case "":
		params.Method = PitchMethodDirect
	case PitchMethodDirect, PitchMethodFFT:
	default:
		return nil, fmt.Errorf("unknown pitch method %q", params.Method)
	}

	sr := float64(params.SampleRate)
	minLag := max(int(math.Floor(sr/params.MaxFreq)), 1)
	maxLag := min(int(math.Floor(sr/params.MinFreq)), params.WindowSize-1)
	if minLag > maxLag {
		return nil, fmt.Errorf("no lag fits pitch range [%g, %g] Hz with window %d at %d Hz",
			params.MinFreq, params.MaxFreq, params.WindowSize, params.SampleRate)
	}

	if fft == nil {
		fft = spectral.NewFFT()
	}

	return &PitchDetector{
		params: params,
		minLag: minLag,
		maxLag: maxLag,
		fft:    fft,
	}, nil
}

// LagRange returns the inclusive lag search range.
func (pd *PitchDetector) LagRange() (int, int) {
	return pd.minLag, pd.maxLag
}

// GetParameters returns the effective parameters
func (pd *PitchDetector) GetParameters() PitchDetectionParams {
	return pd.params
}

// DetectPitch estimates the pitch of one frame. Frames shorter than the
// configured window only search the lags they can support.
func (pd *PitchDetector) DetectPitch(frame []float64) (*PitchDetectionResult, error) {
	maxLag := min(pd.maxLag, len(frame)-1)
	if maxLag < pd.minLag {
		return nil, fmt.Errorf("frame of %d samples too short for minimum lag %d", len(frame), pd.minLag)
	}

	acf := pd.Autocorrelation(frame, maxLag)

	best := pd.minLag
	for lag := pd.minLag + 1; lag <= maxLag; lag++ {
		if acf[lag] > acf[best] {
			best = lag
		}
	}

	result := &PitchDetectionResult{
		Pitch:       float64(pd.params.SampleRate) / float64(best),
		Lag:         best,
		Correlation: acf[best],
	}
	if acf[0] > 0 {
		result.Clarity = common.Clamp(acf[best]/acf[0], 0, 1)
	}
	return result, nil
}

// Autocorrelation returns r[k] = sum_i x[i]*x[i+k] for k in [0, maxLag].
func (pd *PitchDetector) Autocorrelation(frame []float64, maxLag int) []float64 {
	maxLag = min(maxLag, len(frame)-1)
	if maxLag < 0 {
		return []float64{}
	}
	if pd.params.Method == PitchMethodFFT {
		return pd.autocorrelationFFT(frame, maxLag)
	}
	return autocorrelationDirect(frame, maxLag)
}

func autocorrelationDirect(frame []float64, maxLag int) []float64 {
	acf := make([]float64, maxLag+1)
	n := len(frame)
	for lag := 0; lag <= maxLag; lag++ {
		sum := 0.0
		for i := 0; i+lag < n; i++ {
			sum += frame[i] * frame[i+lag]
		}
		acf[lag] = sum
	}
	return acf
}

// autocorrelationFFT pads to at least 2n so the circular correlation equals
// the linear one over the lags we read.
func (pd *PitchDetector) autocorrelationFFT(frame []float64, maxLag int) []float64 {
	size := common.NextPowerOfTwo(2 * len(frame))
	padded := make([]float64, size)
	copy(padded, frame)

	spectrum := pd.fft.Forward(padded)
	for k, c := range spectrum {
		spectrum[k] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}

	full := pd.fft.InverseReal(spectrum, size)
	acf := make([]float64, maxLag+1)
	copy(acf, full)
	return acf
}
