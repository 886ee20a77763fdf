// Package audio defines the sample model shared by the voicewire transport
// core: normalised floating-point sample buffers, sample-rate conversion, and
// float ⇄ 16-bit fixed-point quantisation.
//
// Buffers carry samples in the range [-1.0, 1.0]. All conversion to and from
// the 16-bit little-endian wire representation happens through the functions
// in this package so that the capture pipeline and the playback path share
// one set of numeric policies (saturation, NaN handling, rounding).
//
// This package lives under pkg/ because device adapters and test harnesses
// outside internal/ construct and consume [SampleBuffer] values.
package audio

// SampleBuffer is an ordered sequence of normalised audio amplitudes tagged
// with its sample rate and channel count. Buffers are treated as immutable
// once constructed — no function in this module mutates Samples in place.
type SampleBuffer struct {
	// Samples holds interleaved normalised amplitudes in [-1.0, 1.0].
	Samples []float32

	// Rate is the sample rate in Hz. Must be > 0.
	Rate int

	// Channels is the number of interleaved channels (1 = mono). Must be > 0.
	Channels int
}

// Frames returns the number of sample frames (samples per channel).
func (b SampleBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback duration of the buffer in seconds.
// A zero-length buffer has duration 0 regardless of rate.
func (b SampleBuffer) Duration() float64 {
	if b.Rate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Rate)
}

// Empty reports whether the buffer contains no samples.
func (b SampleBuffer) Empty() bool {
	return len(b.Samples) == 0
}
