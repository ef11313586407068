package analysis

import (
	"github.com/RyanBlaney/sonido-emotion/analysis/extractors"
	"github.com/RyanBlaney/sonido-emotion/analysis/scoring"
	"github.com/RyanBlaney/sonido-emotion/analysis/voice"
)

// AnalysisResult is the complete output for one clip. It is built once and
// not modified afterwards.
type AnalysisResult struct {
	SpeakerProfile SpeakerProfile   `json:"speakerProfile"`
	Emotions       scoring.Emotions `json:"emotions"`
	TimeSeriesData []TimePoint      `json:"timeSeriesData"`

	PrimaryEmotion   scoring.Label  `json:"primaryEmotion"`
	SecondaryEmotion *scoring.Label `json:"secondaryEmotion,omitempty"`
	Features         FeatureSummary `json:"features"`
	Scorer           string         `json:"scorer"`
}

// SpeakerProfile identifies the clip and carries its voice characteristics.
// Confidence is in [0, 100].
type SpeakerProfile struct {
	ID              string                `json:"id"`
	Confidence      float64               `json:"confidence"`
	Characteristics voice.Characteristics `json:"characteristics"`
}

// TimePoint is one frame of the pitch and energy series.
type TimePoint struct {
	Time   float64 `json:"time"`   // seconds
	Pitch  float64 `json:"pitch"`  // Hz
	Energy float64 `json:"energy"` // mean square
}

// FeatureSummary holds the clip-level measurements behind the scores.
type FeatureSummary struct {
	SpectralFeatures []float64 `json:"spectralFeatures"`
	BandFrequencies  []float64 `json:"bandFrequencies"`
	SpectralCentroid float64   `json:"spectralCentroid"`
	Tempo            float64   `json:"tempo"`
	TempoCategory    string    `json:"tempoCategory"`
	MeanZCR          float64   `json:"meanZcr"`
	FrameCount       int       `json:"frameCount"`
	Duration         float64   `json:"duration"`
	SampleRate       int       `json:"sampleRate"`
}

func newFeatureSummary(f *extractors.Features) FeatureSummary {
	return FeatureSummary{
		SpectralFeatures: f.SpectralFeatures,
		BandFrequencies:  f.BandFrequencies,
		SpectralCentroid: f.SpectralCentroid,
		Tempo:            f.Tempo,
		TempoCategory:    f.TempoCategory,
		MeanZCR:          f.MeanZCR,
		FrameCount:       f.FrameCount,
		Duration:         f.Duration,
		SampleRate:       f.SampleRate,
	}
}

func newTimeSeries(f *extractors.Features) []TimePoint {
	points := make([]TimePoint, len(f.Pitch))
	for i := range points {
		points[i] = TimePoint{
			Time:   f.Times[i],
			Pitch:  f.Pitch[i],
			Energy: f.Energy[i],
		}
	}
	return points
}
