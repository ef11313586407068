package analysis

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

// Store persists finished results and returns a record id.
type Store interface {
	Store(ctx context.Context, result *AnalysisResult) (string, error)
}

// Transcriber turns the original encoded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Report is what Service.Process hands back: the analysis plus whatever the
// optional collaborators produced.
type Report struct {
	RecordID   string          `json:"recordId,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Result     *AnalysisResult `json:"result"`
}

// Service runs an Analyzer and then the injected collaborators. The
// Analyzer itself never calls them. Store and Transcriber may be nil.
type Service struct {
	analyzer    *Analyzer
	store       Store
	transcriber Transcriber
	logger      logging.Logger
}

// NewService wires analyzer to optional collaborators.
func NewService(analyzer *Analyzer, store Store, transcriber Transcriber) *Service {
	return &Service{
		analyzer:    analyzer,
		store:       store,
		transcriber: transcriber,
		logger: logging.WithFields(logging.Fields{
			"component": "analysis_service",
		}),
	}
}

// Process analyzes audio, stores the result and transcribes raw when the
// matching collaborator is set. Any failure aborts the run and is returned
// wrapped; ctx is checked between steps.
func (s *Service) Process(ctx context.Context, audio *transcode.AudioData, raw []byte) (*Report, error) {
	if audio == nil {
		return nil, fmt.Errorf("audio data cannot be nil")
	}

	logger := s.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":    "Process",
		"source":      audio.Source,
		"sample_rate": audio.SampleRate,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := s.analyzer.Analyze(audio.PCM, audio.SampleRate)
	if err != nil {
		logger.Error(err, "Analysis failed")
		return nil, err
	}
	report := &Report{Result: result}

	if s.store != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := s.store.Store(ctx, result)
		if err != nil {
			logger.Error(err, "Failed to store analysis")
			return nil, fmt.Errorf("failed to store analysis: %w", err)
		}
		report.RecordID = id
	}

	if s.transcriber != nil && len(raw) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := s.transcriber.Transcribe(ctx, raw)
		if err != nil {
			logger.Error(err, "Failed to transcribe audio")
			return nil, fmt.Errorf("failed to transcribe audio: %w", err)
		}
		report.Transcript = text
	}

	logger.Info("Processed clip", logging.Fields{
		"primary":    result.PrimaryEmotion,
		"confidence": result.SpeakerProfile.Confidence,
		"record_id":  report.RecordID,
	})
	return report, nil
}
