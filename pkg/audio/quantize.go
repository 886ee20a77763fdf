package audio

import (
	"encoding/binary"
	"math"
)

// Quantize converts normalised float samples to signed 16-bit fixed-point.
// Each sample maps to round(s * 32768) saturated to the int16 range — values
// outside [-1.0, 1.0] clamp rather than wrap. NaN maps to 0 and ±Inf saturate,
// so any finite-or-not input produces a bounded integer.
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		f := float64(s)
		if math.IsNaN(f) {
			out[i] = 0
			continue
		}
		v := math.Round(f * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// Dequantize is the inverse of [Quantize] up to rounding: each integer v maps
// to v / 32768. The composition Dequantize(Quantize(x)) approximates x within
// ~1/32768 and must not be compared for exact equality.
func Dequantize(ints []int16) []float32 {
	out := make([]float32, len(ints))
	for i, v := range ints {
		out[i] = float32(v) / 32768.0
	}
	return out
}

// Int16ToBytes packs int16 samples into little-endian bytes, two per sample.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 unpacks little-endian bytes into int16 samples. Any trailing
// odd byte is silently ignored.
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// DownmixMono collapses an interleaved multi-channel buffer to mono by
// averaging all channels per frame. A mono input is returned unchanged.
func DownmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
