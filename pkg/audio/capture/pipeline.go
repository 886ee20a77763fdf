// Package capture turns raw microphone buffers into wire-ready encoded
// chunks for the speech service: down-mix to mono, resample to the outbound
// wire rate, quantise to 16-bit PCM, pack little-endian, base64-encode.
//
// The pipeline is pure and stateless per call — it holds only its
// configuration — so it can run directly on the capture callback path
// without blocking concerns.
package capture

import (
	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/audio/wire"
)

// DefaultWireRate is the outbound sample rate contractually expected by the
// speech service.
const DefaultWireRate = 16000

// Source is the external capture provider. It delivers raw normalised
// sample buffers on a cadence and with buffer sizes of its own choosing;
// the pipeline places no constraint on either.
type Source interface {
	// Buffers returns the channel on which capture buffers arrive. The
	// channel is closed when the source shuts down.
	Buffers() <-chan audio.SampleBuffer

	// Close stops capture and releases the underlying device.
	Close() error
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithWireRate overrides the outbound wire rate. Primarily used in tests;
// the service contract fixes the rate at [DefaultWireRate].
func WithWireRate(rate int) Option {
	return func(p *Pipeline) {
		if rate > 0 {
			p.wireRate = rate
		}
	}
}

// Pipeline converts capture buffers into outbound [wire.Chunk] values.
// The zero value is not usable; construct with [New].
type Pipeline struct {
	wireRate int
	tag      wire.Tag
}

// New creates a capture pipeline targeting the outbound wire format
// (PCM16 mono at [DefaultWireRate] unless overridden).
func New(opts ...Option) *Pipeline {
	p := &Pipeline{wireRate: DefaultWireRate}
	for _, o := range opts {
		o(p)
	}
	p.tag = wire.NewTag(p.wireRate)
	return p
}

// WireRate returns the outbound sample rate the pipeline targets.
func (p *Pipeline) WireRate() int { return p.wireRate }

// BuildChunk converts one capture buffer into an outbound chunk. The format
// tag is fixed per pipeline and never varies per call, regardless of the
// input buffer's rate or channel count. There is no error path: non-finite
// samples are bounded by the quantiser and degenerate empty buffers produce
// a chunk with an empty payload.
func (p *Pipeline) BuildChunk(buf audio.SampleBuffer) wire.Chunk {
	samples := audio.DownmixMono(buf.Samples, buf.Channels)
	if buf.Rate != p.wireRate {
		samples = audio.Resample(samples, buf.Rate, p.wireRate)
	}
	pcm := audio.Int16ToBytes(audio.Quantize(samples))
	return wire.Chunk{
		Payload: wire.EncodePayload(pcm),
		Format:  p.tag,
	}
}
