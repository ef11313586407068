package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
	"github.com/RyanBlaney/sonido-emotion/analysis/scoring"
	"github.com/RyanBlaney/sonido-emotion/analysis/voice"
)

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// voiceLike is a 150 Hz tone with slow amplitude and pitch movement.
func voiceLike(sampleRate, n int) []float64 {
	out := make([]float64, n)
	phase := 0.0
	for i := range out {
		t := float64(i) / float64(sampleRate)
		f := 150 + 30*math.Sin(2*math.Pi*0.7*t)
		phase += 2 * math.Pi * f / float64(sampleRate)
		out[i] = (0.3 + 0.2*math.Sin(2*math.Pi*3*t)) * math.Sin(phase)
	}
	return out
}

func noise(seed uint64, n int) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

func newTestAnalyzer(t *testing.T, cfg *config.Config, scorer scoring.Scorer) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(cfg, scorer)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestAnalyzeProducesDistribution(t *testing.T) {
	t.Parallel()
	signals := map[string][]float64{
		"sine":    sine(220, 16000, 16000, 0.5),
		"voice":   voiceLike(16000, 24000),
		"noise":   noise(7, 16000),
		"silence": make([]float64, 16000),
	}

	for _, name := range []string{config.ScorerRules, config.ScorerBaseline} {
		cfg := config.Default()
		cfg.Scoring.Scorer = name
		scorer, err := scoring.NewFromConfig(cfg)
		if err != nil {
			t.Fatal(err)
		}
		a := newTestAnalyzer(t, cfg, scorer)

		for sigName, samples := range signals {
			res, err := a.Analyze(samples, 16000)
			if err != nil {
				t.Fatalf("%s/%s: %v", name, sigName, err)
			}
			if !res.Emotions.IsSimplex(1e-6) {
				t.Errorf("%s/%s: %+v is not a distribution", name, sigName, res.Emotions)
			}
			c := res.SpeakerProfile.Characteristics
			for metric, v := range map[string]float64{"quality": c.VoiceQuality, "clarity": c.Clarity, "stability": c.Stability} {
				if v < 0 || v > 1 {
					t.Errorf("%s/%s: %s = %v", name, sigName, metric, v)
				}
			}
			if conf := res.SpeakerProfile.Confidence; conf < 20-1e-9 || conf > 100 {
				t.Errorf("%s/%s: confidence %v", name, sigName, conf)
			}
			if res.Scorer != name {
				t.Errorf("scorer = %q, want %q", res.Scorer, name)
			}
		}
	}
}

func TestAnalyzeTimeSeries(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t, nil, nil)
	res, err := a.Analyze(sine(220, 44100, 10000, 0.5), 44100)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(res.TimeSeriesData) != 16 || res.Features.FrameCount != 16 {
		t.Fatalf("got %d points, %d frames, want 16", len(res.TimeSeriesData), res.Features.FrameCount)
	}
	for i, p := range res.TimeSeriesData {
		wantTime := float64(i*512) / 44100
		if math.Abs(p.Time-wantTime) > 1e-12 {
			t.Errorf("point %d time = %v, want %v", i, p.Time, wantTime)
		}
		if math.Abs(p.Pitch-220) > 5 {
			t.Errorf("point %d pitch = %v, want 220 +/- 5", i, p.Pitch)
		}
		if p.Energy < 0 {
			t.Errorf("point %d energy = %v", i, p.Energy)
		}
	}
	if len(res.Features.SpectralFeatures) != 40 {
		t.Errorf("spectral vector length %d, want 40", len(res.Features.SpectralFeatures))
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t, nil, nil)
	samples := voiceLike(22050, 30000)

	first, err := a.Analyze(samples, 22050)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		again, err := a.Analyze(samples, 22050)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatal("repeated analysis differs")
		}
	}
}

func TestAnalyzeIndependentOfWorkers(t *testing.T) {
	t.Parallel()
	samples := voiceLike(16000, 40000)

	var want *AnalysisResult
	for _, workers := range []int{1, 2, 7, 32} {
		cfg := config.Default()
		cfg.Workers = workers
		res, err := newTestAnalyzer(t, cfg, nil).Analyze(samples, 16000)
		if err != nil {
			t.Fatal(err)
		}
		if want == nil {
			want = res
			continue
		}
		if !reflect.DeepEqual(res, want) {
			t.Fatalf("workers=%d changed the result", workers)
		}
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t, nil, nil)

	for _, samples := range [][]float64{nil, {}, make([]float64, 2047)} {
		res, err := a.Analyze(samples, 44100)
		if err != nil {
			t.Fatalf("len %d: %v", len(samples), err)
		}
		if res.Emotions != scoring.Uniform() {
			t.Errorf("len %d: emotions %+v, want uniform", len(samples), res.Emotions)
		}
		if res.SpeakerProfile.Characteristics != voice.Default() {
			t.Errorf("len %d: characteristics %+v", len(samples), res.SpeakerProfile.Characteristics)
		}
		if math.Abs(res.SpeakerProfile.Confidence-20) > 1e-9 {
			t.Errorf("len %d: confidence %v, want 20", len(samples), res.SpeakerProfile.Confidence)
		}
		if res.TimeSeriesData == nil || len(res.TimeSeriesData) != 0 {
			t.Errorf("len %d: time series %v, want empty", len(samples), res.TimeSeriesData)
		}
		if res.PrimaryEmotion != scoring.Neutral || res.SecondaryEmotion != nil {
			t.Errorf("len %d: primary %s secondary %v", len(samples), res.PrimaryEmotion, res.SecondaryEmotion)
		}
		if !strings.HasPrefix(res.SpeakerProfile.ID, "SP-") {
			t.Errorf("len %d: id %q", len(samples), res.SpeakerProfile.ID)
		}
	}
}

func TestAnalyzeEmptyInputAtLowSampleRate(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t, nil, nil)

	// 50 Hz cannot hold the default 60 Hz pitch floor, but an empty clip
	// never reaches pitch detection.
	for _, sr := range []int{50, 8} {
		res, err := a.Analyze(nil, sr)
		if err != nil {
			t.Fatalf("sample rate %d: %v", sr, err)
		}
		if res.Emotions != scoring.Uniform() || res.SpeakerProfile.Characteristics != voice.Default() {
			t.Errorf("sample rate %d: got %+v, want the default result", sr, res)
		}
		if res.Features.SampleRate != sr || len(res.Features.SpectralFeatures) != config.DefaultMelBands {
			t.Errorf("sample rate %d: features %+v", sr, res.Features)
		}
	}

	if _, err := a.Analyze(sine(20, 50, 4096, 0.5), 50); err == nil {
		t.Error("expected an error for a full clip at a rate below the pitch range")
	}
}

func TestAnalyzeRejectsOverflowingFeatures(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t, nil, nil)

	// Every sample is finite but frame energy overflows.
	samples := make([]float64, 8192)
	for i := range samples {
		samples[i] = 1e160 * math.Sin(0.3*float64(i))
	}
	res, err := a.Analyze(samples, 44100)
	if !errors.Is(err, ErrNonFiniteFeature) {
		t.Fatalf("got %v, want ErrNonFiniteFeature", err)
	}
	if res != nil {
		t.Error("got a result alongside the error")
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t, nil, nil)

	for _, sr := range []int{0, -44100} {
		if _, err := a.Analyze(sine(220, 44100, 4096, 0.5), sr); !errors.Is(err, ErrInvalidSampleRate) {
			t.Errorf("sample rate %d: %v, want ErrInvalidSampleRate", sr, err)
		}
	}

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		samples := sine(220, 44100, 4096, 0.5)
		samples[100] = bad
		res, err := a.Analyze(samples, 44100)
		if !errors.Is(err, ErrNonFiniteSample) {
			t.Errorf("sample %v: %v, want ErrNonFiniteSample", bad, err)
		}
		if res != nil {
			t.Errorf("sample %v: got partial result", bad)
		}
	}
}

func TestNewAnalyzerRejectsBadConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Frame.Hop = 0
	if _, err := NewAnalyzer(cfg, nil); !errors.Is(err, common.ErrInvalidFrameConfig) {
		t.Errorf("hop 0: %v, want ErrInvalidFrameConfig", err)
	}

	cfg = config.Default()
	cfg.Spectral.Bands = 0
	if _, err := NewAnalyzer(cfg, nil); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("zero bands: %v, want ErrInvalidConfig", err)
	}
}

func TestSpeakerID(t *testing.T) {
	t.Parallel()
	a := sine(220, 16000, 4096, 0.5)
	b := sine(221, 16000, 4096, 0.5)

	id := speakerID(a, 16000)
	if len(id) != len("SP-")+12 || !strings.HasPrefix(id, "SP-") {
		t.Fatalf("id %q has wrong shape", id)
	}
	if speakerID(a, 16000) != id {
		t.Error("same clip, different id")
	}
	if speakerID(b, 16000) == id || speakerID(a, 8000) == id {
		t.Error("different clip or rate, same id")
	}
}

type fixedScorer struct {
	e   scoring.Emotions
	err error
}

func (f fixedScorer) Score(*scoring.Input) (scoring.Emotions, error) { return f.e, f.err }
func (f fixedScorer) Name() string                                   { return "fixed" }

func TestAnalyzeScorerOutputs(t *testing.T) {
	t.Parallel()
	samples := sine(220, 16000, 8000, 0.5)

	// Unnormalized scores are normalized before reporting.
	res, err := newTestAnalyzer(t, nil, fixedScorer{e: scoring.Emotions{Neutral: 1, Happy: 6, Sad: 1.5, Angry: 1, Fearful: 0.5}}).
		Analyze(samples, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Emotions.Happy-0.6) > 1e-12 || math.Abs(res.SpeakerProfile.Confidence-60) > 1e-9 {
		t.Errorf("emotions %+v confidence %v", res.Emotions, res.SpeakerProfile.Confidence)
	}
	if res.PrimaryEmotion != scoring.Happy || res.SecondaryEmotion != nil {
		t.Errorf("primary %s secondary %v, want happy and none", res.PrimaryEmotion, res.SecondaryEmotion)
	}

	cfg := config.Default()
	cfg.Scoring.MinConfidence = 0.15
	res, err = newTestAnalyzer(t, cfg, fixedScorer{e: scoring.Emotions{Neutral: 0.1, Happy: 0.6, Sad: 0.15, Angry: 0.1, Fearful: 0.05}}).
		Analyze(samples, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if res.SecondaryEmotion == nil || *res.SecondaryEmotion != scoring.Sad {
		t.Errorf("secondary = %v, want sad", res.SecondaryEmotion)
	}

	for name, e := range map[string]scoring.Emotions{
		"negative": {Happy: 1.2, Sad: -0.2},
		"nan":      {Happy: math.NaN()},
		"zero":     {},
	} {
		_, err := newTestAnalyzer(t, nil, fixedScorer{e: e}).Analyze(samples, 16000)
		if !errors.Is(err, ErrInvalidDistribution) {
			t.Errorf("%s: %v, want ErrInvalidDistribution", name, err)
		}
	}

	_, err = newTestAnalyzer(t, nil, fixedScorer{err: scoring.ErrModelNotInitialized}).Analyze(samples, 16000)
	if !errors.Is(err, scoring.ErrModelNotInitialized) {
		t.Errorf("scorer error: %v, want ErrModelNotInitialized", err)
	}
}

func TestAnalysisResultJSON(t *testing.T) {
	t.Parallel()
	res, err := newTestAnalyzer(t, nil, nil).Analyze(voiceLike(16000, 16000), 16000)
	if err != nil {
		t.Fatal(err)
	}
	res.SecondaryEmotion = nil

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"speakerProfile", "emotions", "timeSeriesData", "primaryEmotion", "features", "scorer"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := doc["secondaryEmotion"]; ok {
		t.Error("secondaryEmotion present although unset")
	}

	var profile struct {
		ID              string         `json:"id"`
		Confidence      float64        `json:"confidence"`
		Characteristics map[string]any `json:"characteristics"`
	}
	if err := json.Unmarshal(doc["speakerProfile"], &profile); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"pitchMean", "pitchRange", "voiceQuality", "clarity", "stability"} {
		if _, ok := profile.Characteristics[key]; !ok {
			t.Errorf("characteristics missing %q", key)
		}
	}
}

func BenchmarkAnalyze(b *testing.B) {
	a, err := NewAnalyzer(nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	samples := voiceLike(16000, 48000)
	for b.Loop() {
		if _, err := a.Analyze(samples, 16000); err != nil {
			b.Fatal(err)
		}
	}
}
