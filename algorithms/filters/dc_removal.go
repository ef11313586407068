package filters

import (
	"fmt"
	"math"
)

// DCRemoval is a one-pole DC blocker:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
//
// Process keeps no state between calls, so one DCRemoval may be shared.
type DCRemoval struct {
	poleLocation float64
	cutoffFreq   float64
	sampleRate   int
}

// NewDCRemovalWithCutoff creates a DC blocker with a -3dB point near
// cutoffFreq, using R = 1 - 2*pi*fc/fs.
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) (*DCRemoval, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if cutoffFreq <= 0 || cutoffFreq >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("cutoff %g Hz must be in (0, %g)", cutoffFreq, float64(sampleRate)/2)
	}

	r := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
	// Clamp to valid range
	r = math.Max(0.001, math.Min(r, 0.999))

	return &DCRemoval{
		poleLocation: r,
		cutoffFreq:   cutoffFreq,
		sampleRate:   sampleRate,
	}, nil
}

// Process filters a whole buffer starting from zero state.
func (dc *DCRemoval) Process(input []float64) []float64 {
	output := make([]float64, len(input))
	x1, y1 := 0.0, 0.0
	for i, x := range input {
		y := x - x1 + dc.poleLocation*y1
		output[i] = y
		x1, y1 = x, y
	}
	return output
}

// GetPoleLocation returns R.
func (dc *DCRemoval) GetPoleLocation() float64 {
	return dc.poleLocation
}

// GetCutoffFrequency returns the requested cutoff in Hz.
func (dc *DCRemoval) GetCutoffFrequency() float64 {
	return dc.cutoffFreq
}
