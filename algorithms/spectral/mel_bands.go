package spectral

import (
	"fmt"
)

// Band reduction modes.
const (
	// BandModeBins samples one magnitude bin per band at
	// floor((i/numBands) * (frameSize/2)).
	BandModeBins = "bins"
	// BandModeFilterbank sums the power spectrum under triangular mel filters.
	BandModeFilterbank = "filterbank"
)

// BandReducer compresses a magnitude spectrum into a fixed number of bands so
// the clip-level feature vector length does not depend on frame size or
// clip duration.
type BandReducer struct {
	mode        string
	numBands    int
	frameSize   int
	bins        []int
	frequencies []float64
	filterBank  [][]float64
	melScale    *MelScale
}

// NewBandReducer prepares the bin table or filter bank for frames of
// frameSize samples at sampleRate.
func NewBandReducer(mode string, numBands, frameSize, sampleRate int, lowHz, highHz float64) (*BandReducer, error) {
	if numBands <= 0 {
		return nil, fmt.Errorf("number of bands must be positive, got %d", numBands)
	}
	if frameSize < 2 {
		return nil, fmt.Errorf("frame size must be at least 2, got %d", frameSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	br := &BandReducer{
		mode:      mode,
		numBands:  numBands,
		frameSize: frameSize,
		melScale:  NewMelScale(),
	}

	switch mode {
	case "", BandModeBins:
		br.mode = BandModeBins
		half := frameSize / 2
		br.bins = make([]int, numBands)
		br.frequencies = make([]float64, numBands)
		for i := range numBands {
			bin := int(float64(i) / float64(numBands) * float64(half))
			br.bins[i] = bin
			br.frequencies[i] = float64(bin) * float64(sampleRate) / float64(frameSize)
		}

	case BandModeFilterbank:
		nyquist := float64(sampleRate) / 2
		if highHz <= 0 || highHz > nyquist {
			highHz = nyquist
		}
		if lowHz < 0 || lowHz >= highHz {
			return nil, fmt.Errorf("mel range [%g, %g] Hz is empty", lowHz, highHz)
		}
		br.filterBank = br.melScale.CreateMelFilterBank(numBands, frameSize, sampleRate, lowHz, highHz)
		br.frequencies = br.melScale.CenterFrequencies(numBands, lowHz, highHz)

	default:
		return nil, fmt.Errorf("unknown spectral band mode %q", mode)
	}

	return br, nil
}

// Reduce maps one frame's magnitude spectrum (frameSize/2+1 values) to
// numBands values.
func (br *BandReducer) Reduce(magnitudes []float64) []float64 {
	bands := make([]float64, br.numBands)

	if br.mode == BandModeBins {
		for i, bin := range br.bins {
			if bin < len(magnitudes) {
				bands[i] = magnitudes[bin]
			}
		}
		return bands
	}

	power := make([]float64, len(magnitudes))
	for i, m := range magnitudes {
		power[i] = m * m
	}
	copy(bands, br.melScale.ApplyFilterBank(power, br.filterBank))
	return bands
}

// Frequencies returns the frequency in Hz each band represents: the sampled
// bin frequency, or the filter centre frequency.
func (br *BandReducer) Frequencies() []float64 {
	out := make([]float64, len(br.frequencies))
	copy(out, br.frequencies)
	return out
}

// NumBands returns the output vector length.
func (br *BandReducer) NumBands() int { return br.numBands }

// Mode returns the reduction mode in use.
func (br *BandReducer) Mode() string { return br.mode }
