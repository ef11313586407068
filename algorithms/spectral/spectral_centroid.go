package spectral

// SpectralCentroid computes the centre of mass of a spectrum over a set of
// known frequencies.
type SpectralCentroid struct{}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid() *SpectralCentroid {
	return &SpectralCentroid{}
}

// ComputeWithFrequencies returns sum(f*v)/sum(v) for band values v at
// frequencies f. Zero total weight yields 0.
func (sc *SpectralCentroid) ComputeWithFrequencies(values, frequencies []float64) float64 {
	n := min(len(values), len(frequencies))

	numerator := 0.0
	denominator := 0.0
	for i := range n {
		numerator += frequencies[i] * values[i]
		denominator += values[i]
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
