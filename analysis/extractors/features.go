package extractors

// Features holds everything the feature extractor measures for one clip.
// Per-frame series share one index and are in chronological order.
type Features struct {
	Pitch            []float64 `json:"pitch"`              // Hz per frame
	Energy           []float64 `json:"energy"`             // mean square per frame
	ZeroCrossingRate []float64 `json:"zero_crossing_rate"` // crossings/(frameSize-1) per frame
	Times            []float64 `json:"times"`              // frame start, seconds

	// Clip-level spectral summary
	SpectralFeatures []float64 `json:"spectral_features"` // band values averaged over frames
	BandFrequencies  []float64 `json:"band_frequencies"`  // Hz represented by each band
	SpectralCentroid float64   `json:"spectral_centroid"` // Hz, from SpectralFeatures

	// Prosody
	Tempo         float64 `json:"tempo"` // energy peaks per minute
	TempoCategory string  `json:"tempo_category"`
	MeanZCR       float64 `json:"mean_zcr"`

	FrameCount int     `json:"frame_count"`
	Duration   float64 `json:"duration"` // seconds of input
	SampleRate int     `json:"sample_rate"`
}
