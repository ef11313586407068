package spectral

import (
	"fmt"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend names accepted by NewTransformer.
const (
	BackendGoDSP = "godsp"
	BackendGonum = "gonum"
)

// Transformer is the DSP primitive the pipeline needs from an FFT library.
// Implementations must be safe for concurrent use.
type Transformer interface {
	// Forward returns the first len(x)/2+1 complex coefficients of the DFT of x.
	Forward(x []float64) []complex128
	// InverseReal returns the real inverse DFT of a length-n Hermitian
	// spectrum given as its first n/2+1 coefficients, scaled so that
	// InverseReal(Forward(x), len(x)) reproduces x.
	InverseReal(half []complex128, n int) []float64
	Name() string
}

// NewTransformer returns the FFT backend with the given name.
func NewTransformer(name string) (Transformer, error) {
	switch name {
	case "", BackendGoDSP:
		return NewFFT(), nil
	case BackendGonum:
		return NewGonumFFT(), nil
	default:
		return nil, fmt.Errorf("unknown FFT backend %q", name)
	}
}

// FFT wraps mjibson/go-dsp, which handles any length (radix-2 or Bluestein)
// and caches twiddle factors behind its own locks.
type FFT struct{}

// NewFFT creates a new go-dsp backed transformer
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the full complex spectrum of x.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

func (f *FFT) Forward(x []float64) []complex128 {
	full := f.Compute(x)
	if len(full) == 0 {
		return full
	}
	return full[:len(x)/2+1]
}

func (f *FFT) InverseReal(half []complex128, n int) []float64 {
	if n == 0 || len(half) != n/2+1 {
		return []float64{}
	}

	// Rebuild the Hermitian-symmetric spectrum.
	full := make([]complex128, n)
	copy(full, half)
	for k := len(half); k < n; k++ {
		full[k] = cmplx.Conj(half[n-k])
	}

	result := fft.IFFT(full)
	out := make([]float64, n)
	for i, v := range result {
		out[i] = real(v)
	}
	return out
}

func (f *FFT) Name() string { return BackendGoDSP }

// GonumFFT wraps gonum's fftpack port. A fourier.FFT carries work buffers, so
// plans are pooled per length rather than shared.
type GonumFFT struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

// NewGonumFFT creates a gonum backed transformer
func NewGonumFFT() *GonumFFT {
	return &GonumFFT{pools: make(map[int]*sync.Pool)}
}

func (g *GonumFFT) pool(n int) *sync.Pool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pools[n]
	if !ok {
		p = &sync.Pool{New: func() any { return fourier.NewFFT(n) }}
		g.pools[n] = p
	}
	return p
}

func (g *GonumFFT) Forward(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	p := g.pool(len(x))
	plan := p.Get().(*fourier.FFT)
	defer p.Put(plan)

	return plan.Coefficients(nil, x)
}

func (g *GonumFFT) InverseReal(half []complex128, n int) []float64 {
	if n == 0 || len(half) != n/2+1 {
		return []float64{}
	}
	p := g.pool(n)
	plan := p.Get().(*fourier.FFT)
	defer p.Put(plan)

	out := plan.Sequence(nil, half)
	scale := 1 / float64(n)
	for i := range out {
		out[i] *= scale
	}
	return out
}

func (g *GonumFFT) Name() string { return BackendGonum }

// Magnitude returns |X[k]| for each coefficient.
func Magnitude(coeffs []complex128) []float64 {
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = cmplx.Abs(c)
	}
	return mags
}
