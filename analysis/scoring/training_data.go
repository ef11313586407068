package scoring

// DefaultTrainingData returns the built-in labelled examples. Features are
// relative to typical speech, so 1.0 means "average": [pitch, energy,
// tempo, clarity, stability].
func DefaultTrainingData() Dataset {
	return Dataset{
		Features: [][]float64{
			// High pitch, high energy
			{1.2, 0.8, 1.1, 0.9, 1.0},
			{1.1, 0.9, 1.0, 0.8, 0.9},
			{1.3, 0.7, 1.2, 1.0, 1.1},

			// Low pitch, low energy
			{0.7, 0.4, 0.6, 0.5, 0.4},
			{0.6, 0.5, 0.5, 0.4, 0.5},
			{0.8, 0.3, 0.7, 0.6, 0.3},

			// High energy, sharp variation
			{1.4, 1.3, 0.9, 1.2, 1.5},
			{1.3, 1.4, 1.0, 1.1, 1.4},
			{1.5, 1.2, 0.8, 1.3, 1.6},

			// Irregular, slow
			{0.9, 0.7, 0.4, 0.8, 0.6},
			{0.8, 0.8, 0.5, 0.7, 0.5},
			{1.0, 0.6, 0.3, 0.9, 0.7},

			// Balanced
			{1.0, 1.0, 1.0, 1.0, 1.0},
			{0.9, 1.1, 0.9, 1.1, 1.0},
			{1.1, 0.9, 1.1, 0.9, 1.0},
		},
		Labels: []Label{
			Happy, Happy, Happy,
			Sad, Sad, Sad,
			Angry, Angry, Angry,
			Fearful, Fearful, Fearful,
			Neutral, Neutral, Neutral,
		},
	}
}
