package scoring

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RyanBlaney/sonido-emotion/analysis/config"
)

func testClassifierConfig() config.ClassifierConfig {
	cc := config.Default().Scoring.Classifier
	cc.Dropout = 0
	cc.LearningRate = 0.01
	cc.Epochs = 200
	return cc
}

func TestClassifierFailsBeforeTraining(t *testing.T) {
	t.Parallel()
	c := NewClassifier(testClassifierConfig())
	if c.Trained() {
		t.Fatal("new classifier reports trained")
	}
	if _, err := c.Predict([]float64{1, 1, 1, 1, 1}); !errors.Is(err, ErrModelNotInitialized) {
		t.Errorf("Predict before training: %v, want ErrModelNotInitialized", err)
	}
	if err := c.Save(&bytes.Buffer{}); !errors.Is(err, ErrModelNotInitialized) {
		t.Errorf("Save before training: %v, want ErrModelNotInitialized", err)
	}

	cs := NewClassifierScorer(c, config.Default().Scoring.Classifier.References)
	if _, err := cs.Score(nil); !errors.Is(err, ErrModelNotInitialized) {
		t.Errorf("Score with untrained model on empty input: %v", err)
	}
}

func TestClassifierFitReducesLoss(t *testing.T) {
	t.Parallel()
	c := NewClassifier(testClassifierConfig())
	report, err := c.Fit(DefaultTrainingData())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if report.Samples != 15 || report.Epochs != 200 {
		t.Errorf("report = %+v", report)
	}
	if report.FinalLoss >= report.InitialLoss {
		t.Errorf("loss did not decrease: %v -> %v", report.InitialLoss, report.FinalLoss)
	}
	if !c.Trained() {
		t.Error("classifier not marked trained after Fit")
	}
}

func TestClassifierPredictIsDistribution(t *testing.T) {
	t.Parallel()
	c := NewClassifier(testClassifierConfig())
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for _, x := range DefaultTrainingData().Features {
		e, err := c.Predict(x)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if !e.IsSimplex(1e-9) {
			t.Errorf("Predict(%v) = %+v, not a distribution", x, e)
		}
	}
}

func TestClassifierRejectsBadInput(t *testing.T) {
	t.Parallel()
	c := NewClassifier(testClassifierConfig())
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := c.Predict([]float64{1, 1, 1}); !errors.Is(err, ErrFeatureDimension) {
		t.Errorf("short vector: %v, want ErrFeatureDimension", err)
	}
	if _, err := c.Predict([]float64{1, 1, 1, 1, 1, 1}); !errors.Is(err, ErrFeatureDimension) {
		t.Errorf("long vector: %v, want ErrFeatureDimension", err)
	}
	if _, err := c.Predict([]float64{1, 1, math.NaN(), 1, 1}); err == nil {
		t.Error("expected error for NaN feature")
	}

	bad := DefaultTrainingData()
	bad.Features[0] = []float64{1, 2}
	if _, err := NewClassifier(testClassifierConfig()).Fit(bad); !errors.Is(err, ErrFeatureDimension) {
		t.Errorf("Fit with short row: %v, want ErrFeatureDimension", err)
	}
	if _, err := NewClassifier(testClassifierConfig()).Fit(Dataset{}); err == nil {
		t.Error("expected error for empty dataset")
	}

	cc := testClassifierConfig()
	cc.Dropout = 1
	if _, err := NewClassifier(cc).Fit(DefaultTrainingData()); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("dropout 1: %v, want ErrInvalidConfig", err)
	}
}

func TestClassifierInitializeIsIdempotent(t *testing.T) {
	t.Parallel()
	c := NewClassifier(testClassifierConfig())
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	x := []float64{1.2, 0.8, 1.1, 0.9, 1.0}
	first, _ := c.Predict(x)

	if err := c.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	second, _ := c.Predict(x)
	if first != second {
		t.Errorf("second Initialize changed the model: %+v vs %+v", first, second)
	}
}

func TestClassifierSameSeedSameModel(t *testing.T) {
	t.Parallel()
	cc := config.Default().Scoring.Classifier // dropout on
	a, b := NewClassifier(cc), NewClassifier(cc)
	if err := a.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := b.Initialize(); err != nil {
		t.Fatal(err)
	}
	for _, x := range DefaultTrainingData().Features {
		pa, _ := a.Predict(x)
		pb, _ := b.Predict(x)
		if pa != pb {
			t.Fatalf("same seed, different predictions for %v: %+v vs %+v", x, pa, pb)
		}
	}
}

func TestClassifierConcurrentPredict(t *testing.T) {
	t.Parallel()
	c := NewClassifier(testClassifierConfig())
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}
	x := []float64{0.7, 0.4, 0.6, 0.5, 0.4}
	want, _ := c.Predict(x)

	var wg sync.WaitGroup
	results := make([]Emotions, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Predict(x)
		}()
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if results[i] != want {
			t.Fatalf("goroutine %d: %+v, want %+v", i, results[i], want)
		}
	}
}

func TestClassifierSaveLoad(t *testing.T) {
	t.Parallel()
	c := NewClassifier(testClassifierConfig())
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadClassifier(&buf)
	if err != nil {
		t.Fatalf("LoadClassifier: %v", err)
	}
	if !loaded.Trained() {
		t.Fatal("loaded model not ready")
	}

	for _, x := range DefaultTrainingData().Features {
		want, _ := c.Predict(x)
		got, err := loaded.Predict(x)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if got != want {
			t.Fatalf("loaded model predicts %+v, want %+v", got, want)
		}
	}
}

func TestLoadClassifierRejectsBadModels(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"not json":      `{`,
		"wrong version": `{"version": 2}`,
		"wrong labels":  `{"version": 1, "labels": ["happy"]}`,
		"no layers":     `{"version": 1, "labels": ["neutral","happy","sad","angry","fearful"]}`,
		"bad shape": `{"version": 1, "labels": ["neutral","happy","sad","angry","fearful"],
			"layers": [{"inputs": 5, "outputs": 5, "weights": [1, 2], "biases": [0,0,0,0,0]}]}`,
		"wrong width": `{"version": 1, "labels": ["neutral","happy","sad","angry","fearful"],
			"layers": [{"inputs": 5, "outputs": 1, "weights": [1,1,1,1,1], "biases": [0]}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := LoadClassifier(bytes.NewBufferString(body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestClassifierScorer(t *testing.T) {
	t.Parallel()
	model := NewClassifier(testClassifierConfig())
	if err := model.Initialize(); err != nil {
		t.Fatal(err)
	}
	refs := config.Default().Scoring.Classifier.References
	cs := NewClassifierScorer(model, refs)

	e, err := cs.Score(&Input{})
	if err != nil || e != Uniform() {
		t.Errorf("empty input: %+v, %v", e, err)
	}

	in := constantInput(200, 0.008, 130, 2000, 6)
	in.Voice.PitchMean = 200
	in.Voice.EnergyMean = 0.008
	in.Voice.Clarity = 0.9
	in.Voice.Stability = 0.8

	got := FeatureVector(in, refs)
	want := []float64{200.0 / 165, 0.8, 130.0 / 120, 0.9, 0.8}
	for i := range want {
		if diff := got[i] - want[i]; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("feature %d = %v, want %v", i, got[i], want[i])
		}
	}

	e, err = cs.Score(in)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !e.IsSimplex(1e-9) {
		t.Errorf("%+v is not a distribution", e)
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()
	for _, name := range []string{config.ScorerRules, config.ScorerBaseline, config.ScorerClassifier} {
		cfg := config.Default()
		cfg.Scoring.Scorer = name
		s, err := NewFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewFromConfig(%q): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("NewFromConfig(%q).Name() = %q", name, s.Name())
		}
	}

	cfg := config.Default()
	cfg.Scoring.Scorer = "oracle"
	if _, err := NewFromConfig(cfg); err == nil {
		t.Error("expected error for unknown scorer")
	}
}

func TestNewFromConfigLoadsModel(t *testing.T) {
	t.Parallel()
	c := NewClassifier(testClassifierConfig())
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "model.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Save(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg := config.Default()
	cfg.Scoring.Scorer = config.ScorerClassifier
	cfg.Scoring.Classifier.ModelPath = path
	s, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	x := []float64{1, 1, 1, 1, 1}
	want, _ := c.Predict(x)
	got, _ := s.(*ClassifierScorer).Model().Predict(x)
	if got != want {
		t.Errorf("loaded scorer predicts %+v, want %+v", got, want)
	}

	cfg.Scoring.Classifier.ModelPath = filepath.Join(t.TempDir(), "missing.json")
	if _, err := NewFromConfig(cfg); err == nil {
		t.Error("expected error for missing model file")
	}
}
