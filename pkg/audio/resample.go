package audio

// Resample converts a mono sample sequence from srcRate to dstRate using
// linear interpolation. When the rates are equal the input slice is returned
// unchanged (no copy). An empty input yields an empty output regardless of
// rates.
//
// This is a plain decimation/interpolation filter with no anti-aliasing.
// That is a deliberate quality trade-off, not an oversight: the output is
// bit-compatible with the fixed formula below, and downstream tests depend
// on that. Do not substitute a higher-quality filter here.
//
// For each output index i, the source position is pos = i * srcRate/dstRate;
// the output sample interpolates between input[floor(pos)] and the following
// sample, clamped to the final sample at the end of the buffer.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)

	for i := range outLen {
		pos := float64(i) * ratio
		lo := int(pos)

		// Invariant check: lo is always inside [0, len) for valid input by
		// construction of outLen. Emit silence rather than panic if it is not.
		if lo < 0 || lo >= len(samples) {
			out[i] = 0
			continue
		}

		hi := lo + 1
		if hi > len(samples)-1 {
			hi = len(samples) - 1
		}
		frac := float32(pos - float64(lo))
		out[i] = samples[lo]*(1-frac) + samples[hi]*frac
	}
	return out
}
