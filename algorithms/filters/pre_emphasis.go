package filters

import "fmt"

// PreEmphasis implements y[n] = x[n] - α*x[n-1], tilting the spectrum
// toward high frequencies. Typical speech coefficients are 0.95 to 0.97.
//
// References:
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals",
//     Prentice-Hall, 1978, Chapter 4
type PreEmphasis struct {
	coefficient float64
}

// NewPreEmphasis creates a pre-emphasis filter. α must be in [0, 1).
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	if coefficient < 0 || coefficient >= 1 {
		return nil, fmt.Errorf("pre-emphasis coefficient must be in [0, 1), got %g", coefficient)
	}
	return &PreEmphasis{coefficient: coefficient}, nil
}

// Process filters a buffer. The first sample passes through unchanged.
func (pe *PreEmphasis) Process(input []float64) []float64 {
	output := make([]float64, len(input))
	if len(input) == 0 {
		return output
	}
	output[0] = input[0]
	for i := 1; i < len(input); i++ {
		output[i] = input[i] - pe.coefficient*input[i-1]
	}
	return output
}

// GetCoefficient returns α.
func (pe *PreEmphasis) GetCoefficient() float64 {
	return pe.coefficient
}
