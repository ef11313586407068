package analysis

import "errors"

var (
	// ErrInvalidSampleRate is returned for a sample rate that is not positive.
	ErrInvalidSampleRate = errors.New("invalid sample rate")
	// ErrNonFiniteSample is returned when the buffer holds NaN or Inf.
	ErrNonFiniteSample = errors.New("non-finite sample")
	// ErrNonFiniteFeature is returned when finite samples are so large that
	// a derived measurement such as frame energy overflows.
	ErrNonFiniteFeature = errors.New("non-finite feature")
	// ErrInvalidDistribution is returned when a scorer produces scores that
	// cannot be normalized into a probability distribution.
	ErrInvalidDistribution = errors.New("invalid emotion distribution")
)
