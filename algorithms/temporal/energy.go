package temporal

// MeanSquareEnergy returns sum(x^2)/len(x) for one frame, 0 for an empty frame.
// Scaling the signal by a scales the result by a^2.
func MeanSquareEnergy(frame []float64) float64 {
	if len(frame) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, x := range frame {
		sumSquares += x * x
	}
	return sumSquares / float64(len(frame))
}
