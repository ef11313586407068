package scoring

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// NumFeatures is the classifier input width: relative pitch, energy, tempo,
// clarity and stability.
const NumFeatures = 5

// Adam hyperparameters besides the learning rate.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// lossEpsilon keeps log() finite when a probability underflows.
const lossEpsilon = 1e-12

// Dataset is a labelled training set. Features rows must all be
// NumFeatures wide.
type Dataset struct {
	Features [][]float64
	Labels   []Label
}

// FitReport summarizes a training run. Losses are mean cross-entropy over
// the full dataset without dropout.
type FitReport struct {
	Epochs      int     `json:"epochs"`
	Samples     int     `json:"samples"`
	InitialLoss float64 `json:"initial_loss"`
	FinalLoss   float64 `json:"final_loss"`
	Accuracy    float64 `json:"accuracy"`
}

// dense is one fully connected layer, y = x*W + b.
type dense struct {
	w *mat.Dense // in x out
	b []float64
}

// Classifier is a small feed-forward network: NumFeatures inputs, ReLU
// hidden layers, softmax over Labels. It is owned by the caller; there is no
// shared instance. Fit and Initialize take an exclusive lock, Predict a
// shared one, so predictions never observe half-trained weights.
type Classifier struct {
	mu      sync.RWMutex
	config  config.ClassifierConfig
	layers  []dense
	trained bool
	logger  logging.Logger
}

// NewClassifier creates an untrained classifier. Predict fails with
// ErrModelNotInitialized until Fit or Initialize succeeds.
func NewClassifier(cfg config.ClassifierConfig) *Classifier {
	return &Classifier{
		config: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "emotion_classifier",
		}),
	}
}

// Trained reports whether the weights are ready for Predict.
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trained
}

// Initialize fits the built-in training data once. Later calls are no-ops,
// so it is safe to call before every prediction.
func (c *Classifier) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.trained {
		return nil
	}
	_, err := c.fit(DefaultTrainingData())
	return err
}

// Fit trains from freshly seeded weights, replacing any previous model.
func (c *Classifier) Fit(ds Dataset) (FitReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fit(ds)
}

// Predict returns the softmax distribution for one feature vector.
func (c *Classifier) Predict(x []float64) (Emotions, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.trained {
		return Emotions{}, ErrModelNotInitialized
	}
	if len(x) != NumFeatures {
		return Emotions{}, fmt.Errorf("%w: got %d values, want %d", ErrFeatureDimension, len(x), NumFeatures)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Emotions{}, fmt.Errorf("feature %d is not finite: %v", i, v)
		}
	}

	input := mat.NewDense(1, NumFeatures, slices.Clone(x))
	probs, _ := c.forward(input, nil, nil)
	return FromValues(probs.RawRowView(0))
}

func (c *Classifier) validate(ds Dataset) error {
	if len(ds.Features) == 0 {
		return fmt.Errorf("empty training set")
	}
	if len(ds.Features) != len(ds.Labels) {
		return fmt.Errorf("%d feature rows but %d labels", len(ds.Features), len(ds.Labels))
	}
	for i, row := range ds.Features {
		if len(row) != NumFeatures {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureDimension, i, len(row), NumFeatures)
		}
	}
	for i, l := range ds.Labels {
		if _, err := ParseLabel(string(l)); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	if len(c.config.Hidden) == 0 || c.config.Epochs <= 0 || c.config.BatchSize <= 0 || c.config.LearningRate <= 0 {
		return fmt.Errorf("%w: classifier needs hidden layers, epochs, batch size and learning rate", config.ErrInvalidConfig)
	}
	if c.config.Dropout < 0 || c.config.Dropout >= 1 {
		return fmt.Errorf("%w: dropout %g outside [0, 1)", config.ErrInvalidConfig, c.config.Dropout)
	}
	return nil
}

// fit must be called with c.mu held for writing.
func (c *Classifier) fit(ds Dataset) (FitReport, error) {
	if err := c.validate(ds); err != nil {
		return FitReport{}, err
	}

	logger := c.logger.WithFields(logging.Fields{
		"function": "Fit",
		"samples":  len(ds.Features),
		"epochs":   c.config.Epochs,
	})

	rng := rand.New(rand.NewPCG(c.config.Seed, c.config.Seed^0x9e3779b97f4a7c15))
	c.layers = c.initLayers(rng)

	x, y := encodeDataset(ds)
	report := FitReport{
		Epochs:      c.config.Epochs,
		Samples:     len(ds.Features),
		InitialLoss: c.loss(x, y),
	}

	adam := newAdam(c.layers)
	n := len(ds.Features)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for epoch := range c.config.Epochs {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < n; start += c.config.BatchSize {
			batch := order[start:min(start+c.config.BatchSize, n)]
			bx, by := selectRows(x, batch), selectRows(y, batch)
			grads := c.backward(bx, by, rng)
			adam.step(c.layers, grads, c.config.LearningRate)
		}

		if (epoch+1)%max(c.config.Epochs/5, 1) == 0 {
			logger.Debug("Training progress", logging.Fields{
				"epoch": epoch + 1,
				"loss":  c.loss(x, y),
			})
		}
	}

	report.FinalLoss = c.loss(x, y)
	report.Accuracy = c.accuracy(x, y)
	c.trained = true

	logger.Info("Classifier trained", logging.Fields{
		"initial_loss": report.InitialLoss,
		"final_loss":   report.FinalLoss,
		"accuracy":     report.Accuracy,
	})
	return report, nil
}

// initLayers uses He initialization for the ReLU layers.
func (c *Classifier) initLayers(rng *rand.Rand) []dense {
	sizes := append([]int{NumFeatures}, c.config.Hidden...)
	sizes = append(sizes, len(Labels))

	layers := make([]dense, len(sizes)-1)
	for l := range layers {
		in, out := sizes[l], sizes[l+1]
		scale := math.Sqrt(2 / float64(in))
		data := make([]float64, in*out)
		for i := range data {
			data[i] = rng.NormFloat64() * scale
		}
		layers[l] = dense{w: mat.NewDense(in, out, data), b: make([]float64, out)}
	}
	return layers
}

// forward returns softmax probabilities. When cache is non-nil it receives
// the input to every layer and the pre-activation of every hidden layer for
// backpropagation. rng non-nil enables inverted dropout on hidden outputs.
func (c *Classifier) forward(x *mat.Dense, cache *forwardCache, rng *rand.Rand) (*mat.Dense, *forwardCache) {
	a := x
	last := len(c.layers) - 1
	for l, layer := range c.layers {
		if cache != nil {
			cache.inputs = append(cache.inputs, a)
		}

		z := new(mat.Dense)
		z.Mul(a, layer.w)
		z.Apply(func(_, j int, v float64) float64 { return v + layer.b[j] }, z)

		if l == last {
			softmaxRows(z)
			return z, cache
		}

		if cache != nil {
			cache.pre = append(cache.pre, mat.DenseCopyOf(z))
		}
		z.Apply(func(_, _ int, v float64) float64 { return max(v, 0) }, z)

		if rng != nil && c.config.Dropout > 0 {
			keep := 1 - c.config.Dropout
			r, cols := z.Dims()
			mask := mat.NewDense(r, cols, nil)
			mask.Apply(func(_, _ int, _ float64) float64 {
				if rng.Float64() < keep {
					return 1 / keep
				}
				return 0
			}, mask)
			z.MulElem(z, mask)
			if cache != nil {
				cache.masks = append(cache.masks, mask)
			}
		} else if cache != nil {
			cache.masks = append(cache.masks, nil)
		}
		a = z
	}
	return a, cache
}

type forwardCache struct {
	inputs []*mat.Dense // input to each layer
	pre    []*mat.Dense // pre-activation of each hidden layer
	masks  []*mat.Dense // dropout mask per hidden layer, nil when off
}

// backward runs one forward/backward pass with dropout and returns the
// cross-entropy gradients per layer.
func (c *Classifier) backward(x, y *mat.Dense, rng *rand.Rand) []dense {
	probs, cache := c.forward(x, &forwardCache{}, rng)
	rows, _ := x.Dims()

	// Softmax with cross-entropy: dL/dz = (p - y) / batch.
	delta := new(mat.Dense)
	delta.Sub(probs, y)
	delta.Scale(1/float64(rows), delta)

	grads := make([]dense, len(c.layers))
	for l := len(c.layers) - 1; l >= 0; l-- {
		gw := new(mat.Dense)
		gw.Mul(cache.inputs[l].T(), delta)

		_, cols := delta.Dims()
		gb := make([]float64, cols)
		for i := range rows {
			for j, v := range delta.RawRowView(i) {
				gb[j] += v
			}
		}
		grads[l] = dense{w: gw, b: gb}

		if l == 0 {
			break
		}

		// Back through the previous hidden layer's dropout and ReLU.
		prev := new(mat.Dense)
		prev.Mul(delta, c.layers[l].w.T())
		if mask := cache.masks[l-1]; mask != nil {
			prev.MulElem(prev, mask)
		}
		pre := cache.pre[l-1]
		prev.Apply(func(i, j int, v float64) float64 {
			if pre.At(i, j) <= 0 {
				return 0
			}
			return v
		}, prev)
		delta = prev
	}
	return grads
}

func (c *Classifier) loss(x, y *mat.Dense) float64 {
	probs, _ := c.forward(x, nil, nil)
	rows, cols := y.Dims()
	total := 0.0
	for i := range rows {
		for j := range cols {
			if t := y.At(i, j); t > 0 {
				total -= t * math.Log(probs.At(i, j)+lossEpsilon)
			}
		}
	}
	return total / float64(rows)
}

func (c *Classifier) accuracy(x, y *mat.Dense) float64 {
	probs, _ := c.forward(x, nil, nil)
	rows, _ := y.Dims()
	correct := 0
	for i := range rows {
		if common.ArgMax(probs.RawRowView(i)) == common.ArgMax(y.RawRowView(i)) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

func softmaxRows(z *mat.Dense) {
	rows, _ := z.Dims()
	for i := range rows {
		row := z.RawRowView(i)
		peak := slices.Max(row)
		sum := 0.0
		for j, v := range row {
			row[j] = math.Exp(v - peak)
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
	}
}

// encodeDataset builds the input matrix and one-hot targets in Labels order.
func encodeDataset(ds Dataset) (*mat.Dense, *mat.Dense) {
	n := len(ds.Features)
	x := mat.NewDense(n, NumFeatures, nil)
	y := mat.NewDense(n, len(Labels), nil)
	for i, row := range ds.Features {
		x.SetRow(i, row)
		y.Set(i, slices.Index(Labels, ds.Labels[i]), 1)
	}
	return x, y
}

func selectRows(m *mat.Dense, rows []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

// adam holds first and second moment estimates per parameter.
type adam struct {
	t      int
	mW, vW [][]float64
	mB, vB [][]float64
}

func newAdam(layers []dense) *adam {
	a := &adam{}
	for _, l := range layers {
		n := len(l.w.RawMatrix().Data)
		a.mW = append(a.mW, make([]float64, n))
		a.vW = append(a.vW, make([]float64, n))
		a.mB = append(a.mB, make([]float64, len(l.b)))
		a.vB = append(a.vB, make([]float64, len(l.b)))
	}
	return a
}

func (a *adam) step(layers, grads []dense, lr float64) {
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))

	update := func(param, grad, m, v []float64) {
		for i, g := range grad {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
			param[i] -= lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}
	}

	for l := range layers {
		update(layers[l].w.RawMatrix().Data, grads[l].w.RawMatrix().Data, a.mW[l], a.vW[l])
		update(layers[l].b, grads[l].b, a.mB[l], a.vB[l])
	}
}

// modelSnapshot is the persisted form of a trained classifier.
type modelSnapshot struct {
	Version int                     `json:"version"`
	Config  config.ClassifierConfig `json:"config"`
	Labels  []Label                 `json:"labels"`
	Layers  []layerSnapshot         `json:"layers"`
}

type layerSnapshot struct {
	Inputs  int       `json:"inputs"`
	Outputs int       `json:"outputs"`
	Weights []float64 `json:"weights"` // row-major, inputs x outputs
	Biases  []float64 `json:"biases"`
}

const snapshotVersion = 1

// Save writes the trained weights as JSON.
func (c *Classifier) Save(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.trained {
		return ErrModelNotInitialized
	}

	snap := modelSnapshot{
		Version: snapshotVersion,
		Config:  c.config,
		Labels:  Labels,
	}
	for _, l := range c.layers {
		in, out := l.w.Dims()
		snap.Layers = append(snap.Layers, layerSnapshot{
			Inputs:  in,
			Outputs: out,
			Weights: slices.Clone(l.w.RawMatrix().Data),
			Biases:  slices.Clone(l.b),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// LoadClassifier reads weights written by Save. The result is ready for
// Predict.
func LoadClassifier(r io.Reader) (*Classifier, error) {
	var snap modelSnapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported model version %d", snap.Version)
	}
	if !slices.Equal(snap.Labels, Labels) {
		return nil, fmt.Errorf("model labels %v do not match %v", snap.Labels, Labels)
	}
	if len(snap.Layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}

	c := NewClassifier(snap.Config)
	prevOut := NumFeatures
	for i, ls := range snap.Layers {
		if ls.Inputs != prevOut || ls.Outputs <= 0 || ls.Inputs*ls.Outputs != len(ls.Weights) || len(ls.Biases) != ls.Outputs {
			return nil, fmt.Errorf("%w: layer %d has inconsistent shape", ErrFeatureDimension, i)
		}
		c.layers = append(c.layers, dense{
			w: mat.NewDense(ls.Inputs, ls.Outputs, ls.Weights),
			b: ls.Biases,
		})
		prevOut = ls.Outputs
	}
	if prevOut != len(Labels) {
		return nil, fmt.Errorf("%w: output layer has %d units, want %d", ErrFeatureDimension, prevOut, len(Labels))
	}
	c.trained = true
	return c, nil
}
