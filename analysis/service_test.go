package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/RyanBlaney/sonido-emotion/transcode"
)

type fakeStore struct {
	id     string
	err    error
	stored []*AnalysisResult
}

func (f *fakeStore) Store(_ context.Context, r *AnalysisResult) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.stored = append(f.stored, r)
	return f.id, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func testAudio() *transcode.AudioData {
	return &transcode.AudioData{PCM: voiceLike(16000, 16000), SampleRate: 16000, Channels: 1}
}

func TestServiceProcess(t *testing.T) {
	t.Parallel()
	st := &fakeStore{id: "rec-1"}
	tr := &fakeTranscriber{text: "hello there"}
	svc := NewService(newTestAnalyzer(t, nil, nil), st, tr)

	report, err := svc.Process(context.Background(), testAudio(), []byte("RIFF"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.RecordID != "rec-1" || report.Transcript != "hello there" {
		t.Errorf("report = %+v", report)
	}
	if len(st.stored) != 1 || st.stored[0] != report.Result {
		t.Error("store did not receive the result")
	}
	if !report.Result.Emotions.IsSimplex(1e-6) {
		t.Errorf("emotions %+v", report.Result.Emotions)
	}
}

func TestServiceWithoutCollaborators(t *testing.T) {
	t.Parallel()
	svc := NewService(newTestAnalyzer(t, nil, nil), nil, nil)
	report, err := svc.Process(context.Background(), testAudio(), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.RecordID != "" || report.Transcript != "" || report.Result == nil {
		t.Errorf("report = %+v", report)
	}
}

func TestServiceSkipsTranscriptionWithoutRawAudio(t *testing.T) {
	t.Parallel()
	tr := &fakeTranscriber{text: "unused"}
	svc := NewService(newTestAnalyzer(t, nil, nil), nil, tr)
	if _, err := svc.Process(context.Background(), testAudio(), nil); err != nil {
		t.Fatal(err)
	}
	if tr.calls != 0 {
		t.Errorf("transcriber called %d times", tr.calls)
	}
}

func TestServicePropagatesFailures(t *testing.T) {
	t.Parallel()
	storeErr := errors.New("disk full")
	transcribeErr := errors.New("service unavailable")

	tests := []struct {
		name  string
		store Store
		tr    Transcriber
		audio *transcode.AudioData
		want  error
	}{
		{"store", &fakeStore{err: storeErr}, nil, testAudio(), storeErr},
		{"transcriber", nil, &fakeTranscriber{err: transcribeErr}, testAudio(), transcribeErr},
		{"sample rate", nil, nil, &transcode.AudioData{PCM: []float64{0}, SampleRate: 0}, ErrInvalidSampleRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := NewService(newTestAnalyzer(t, nil, nil), tt.store, tt.tr)
			report, err := svc.Process(context.Background(), tt.audio, []byte("raw"))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if report != nil {
				t.Error("report returned alongside error")
			}
		})
	}

	svc := NewService(newTestAnalyzer(t, nil, nil), nil, nil)
	if _, err := svc.Process(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil audio")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Process(ctx, testAudio(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: %v", err)
	}
}
