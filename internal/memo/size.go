package memo

import "time"

// sizeStep maps an age threshold to the display size that applies until
// the next threshold. Ordered ascending; ages past the last threshold
// clamp to maxSize.
type sizeStep struct {
	below time.Duration
	size  float64
}

var sizeSteps = []sizeStep{
	{1 * time.Hour, 1.25},
	{3 * time.Hour, 1.5},
	{6 * time.Hour, 2.0},
	{12 * time.Hour, 2.5},
	{18 * time.Hour, 3.0},
	{24 * time.Hour, 3.5},
	{30 * time.Hour, 4.0},
	{36 * time.Hour, 4.5},
	{42 * time.Hour, 5.0},
	{48 * time.Hour, 5.5},
	{54 * time.Hour, 6.0},
	{60 * time.Hour, 6.5},
	{66 * time.Hour, 7.0},
	{72 * time.Hour, 7.5},
}

const maxSize = 8.0

// CalcSize derives a memo's display size from its age. Pure step
// function: the same age always yields the same size, and size never
// decreases as age grows.
func CalcSize(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	for _, step := range sizeSteps {
		if age < step.below {
			return step.size
		}
	}
	return maxSize
}
