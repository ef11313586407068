package common

import (
	"errors"
	"fmt"
)

// ErrInvalidFrameConfig is returned for a frame size or hop size that cannot
// produce frames.
var ErrInvalidFrameConfig = errors.New("invalid frame configuration")

// Framer slices a mono sample buffer into fixed-size, possibly overlapping
// frames spaced hopSize samples apart. A trailing partial frame is dropped.
type Framer struct {
	frameSize int
	hopSize   int
}

// NewFramer requires frameSize > 0 and 0 < hopSize <= frameSize.
func NewFramer(frameSize, hopSize int) (*Framer, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: frame size must be positive, got %d", ErrInvalidFrameConfig, frameSize)
	}
	if hopSize <= 0 || hopSize > frameSize {
		return nil, fmt.Errorf("%w: hop size must be in (0, %d], got %d", ErrInvalidFrameConfig, frameSize, hopSize)
	}
	return &Framer{frameSize: frameSize, hopSize: hopSize}, nil
}

// FrameSize returns the frame length in samples.
func (f *Framer) FrameSize() int { return f.frameSize }

// HopSize returns the stride between frame starts in samples.
func (f *Framer) HopSize() int { return f.hopSize }

// Count returns floor((n - frameSize)/hopSize) + 1, or 0 if n < frameSize.
func (f *Framer) Count(n int) int {
	if n < f.frameSize {
		return 0
	}
	return (n-f.frameSize)/f.hopSize + 1
}

// FrameStart returns the index of the first sample of frame i.
func (f *Framer) FrameStart(i int) int {
	return i * f.hopSize
}

// FrameTime returns the start time of frame i in seconds.
func (f *Framer) FrameTime(i, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(f.FrameStart(i)) / float64(sampleRate)
}

// Frames returns read-only views into samples, in chronological order.
// Each view has its capacity clipped so appending to it cannot overwrite
// the caller's buffer. Short input yields an empty, non-nil slice.
func (f *Framer) Frames(samples []float64) [][]float64 {
	n := f.Count(len(samples))
	frames := make([][]float64, n)
	for i := range n {
		start := f.FrameStart(i)
		end := start + f.frameSize
		frames[i] = samples[start:end:end]
	}
	return frames
}
