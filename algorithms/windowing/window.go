package windowing

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/dsp/window"
)

// Window names accepted by New.
const (
	Rectangular     = "rectangular"
	Hann            = "hann"
	Hamming         = "hamming"
	Blackman        = "blackman"
	BlackmanHarris  = "blackman_harris"
	BlackmanNuttall = "blackman_nuttall"
	Bartlett        = "bartlett"
	BartlettHann    = "bartlett_hann"
	FlatTop         = "flat_top"
	Tukey           = "tukey"
)

// tukeyAlpha is the taper fraction for the Tukey window.
const tukeyAlpha = 0.5

var generators = map[string]func([]float64) []float64{
	Rectangular:     window.Rectangular,
	Hann:            window.Hann,
	Hamming:         window.Hamming,
	Blackman:        window.Blackman,
	BlackmanHarris:  window.BlackmanHarris,
	BlackmanNuttall: window.BlackmanNuttall,
	Bartlett:        window.Triangular,
	BartlettHann:    window.BartlettHann,
	FlatTop:         window.FlatTop,
	Tukey:           window.Tukey{Alpha: tukeyAlpha}.Transform,
}

// Names returns the supported window names in sorted order.
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Window holds precomputed symmetric window coefficients.
type Window struct {
	name         string
	size         int
	coefficients []float64
}

// New creates a window of the given type. An empty name selects the
// rectangular window.
func New(name string, size int) (*Window, error) {
	if name == "" {
		name = Rectangular
	}
	gen, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("unknown window %q", name)
	}
	if size < 2 {
		return nil, fmt.Errorf("window size must be at least 2, got %d", size)
	}

	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1
	}

	return &Window{
		name:         name,
		size:         size,
		coefficients: gen(coeffs),
	}, nil
}

// Apply returns a windowed copy of signal, leaving signal untouched.
func (w *Window) Apply(signal []float64) ([]float64, error) {
	if len(signal) != w.size {
		return nil, fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	windowed := make([]float64, w.size)
	for i, c := range w.coefficients {
		windowed[i] = signal[i] * c
	}
	return windowed, nil
}

// IsIdentity reports whether applying the window is a no-op.
func (w *Window) IsIdentity() bool {
	return w.name == Rectangular
}

// GetCoefficients returns a copy of the window coefficients
func (w *Window) GetCoefficients() []float64 {
	return slices.Clone(w.coefficients)
}

// GetSize returns the window size
func (w *Window) GetSize() int {
	return w.size
}

// GetType returns the window type
func (w *Window) GetType() string {
	return w.name
}
