package transcribe

// Resample converts mono PCM between sample rates by nearest-sample
// selection. Output length is deterministic: len(in) scaled by the rate
// ratio. Quality is adequate for speech models; no interpolation.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(in) == 0 {
		return in
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]float32, outLen)
	for i := range out {
		src := int(float64(i) * ratio)
		if src >= len(in) {
			src = len(in) - 1
		}
		out[i] = in[src]
	}
	return out
}
