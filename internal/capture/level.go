package capture

import "math"

// rmsLevel computes the root-mean-square level of a block of samples,
// clamped to [0, 1]. An empty block is silence.
func rmsLevel(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	level := math.Sqrt(sum / float64(len(samples)))
	if level > 1 {
		level = 1
	}
	return level
}
