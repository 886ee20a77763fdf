package capture_test

import (
	"math"
	"testing"

	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/audio/capture"
	"github.com/MrWong99/voicewire/pkg/audio/wire"
)

func TestBuildChunk_FormatTagFixed(t *testing.T) {
	p := capture.New()
	for _, rate := range []int{8000, 16000, 44100, 48000} {
		buf := audio.SampleBuffer{
			Samples:  make([]float32, rate/100), // 10ms
			Rate:     rate,
			Channels: 1,
		}
		chunk := p.BuildChunk(buf)
		if chunk.Format != "pcm16@16000" {
			t.Errorf("input rate %d: format tag %q, want %q", rate, chunk.Format, "pcm16@16000")
		}
	}
}

func TestBuildChunk_PassthroughAtWireRate(t *testing.T) {
	p := capture.New()
	buf := audio.SampleBuffer{
		Samples:  []float32{0, 0.5, -0.5, 1.0},
		Rate:     16000,
		Channels: 1,
	}
	chunk := p.BuildChunk(buf)

	raw, err := chunk.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	got := audio.BytesToInt16(raw)
	want := []int16{0, 16384, -16384, 32767}
	if len(got) != len(want) {
		t.Fatalf("sample count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBuildChunk_ResamplesTo16k(t *testing.T) {
	p := capture.New()
	buf := audio.SampleBuffer{
		Samples:  make([]float32, 480), // 10ms at 48k
		Rate:     48000,
		Channels: 1,
	}
	chunk := p.BuildChunk(buf)

	raw, err := chunk.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if n := len(raw) / 2; n != 160 {
		t.Errorf("resampled sample count: got %d, want 160", n)
	}
}

func TestBuildChunk_DownmixesStereo(t *testing.T) {
	p := capture.New()
	// One stereo frame per sample pair; L and R average.
	buf := audio.SampleBuffer{
		Samples:  []float32{0.5, 0.1, -0.5, -0.1},
		Rate:     16000,
		Channels: 2,
	}
	chunk := p.BuildChunk(buf)

	raw, err := chunk.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	got := audio.BytesToInt16(raw)
	if len(got) != 2 {
		t.Fatalf("sample count: got %d, want 2", len(got))
	}
	// 0.3 * 32768 ≈ 9830
	if got[0] < 9829 || got[0] > 9831 {
		t.Errorf("downmixed sample: got %d, want ≈9830", got[0])
	}
}

func TestBuildChunk_EmptyBuffer(t *testing.T) {
	p := capture.New()
	chunk := p.BuildChunk(audio.SampleBuffer{Rate: 44100, Channels: 1})
	if chunk.Payload != "" {
		t.Errorf("empty buffer should produce empty payload, got %q", chunk.Payload)
	}
	if chunk.Format != "pcm16@16000" {
		t.Errorf("format tag %q, want %q", chunk.Format, "pcm16@16000")
	}
}

func TestBuildChunk_NonFiniteSamplesBounded(t *testing.T) {
	p := capture.New()
	buf := audio.SampleBuffer{
		Samples:  []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))},
		Rate:     16000,
		Channels: 1,
	}
	chunk := p.BuildChunk(buf)

	raw, err := chunk.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	got := audio.BytesToInt16(raw)
	want := []int16{0, 32767, -32768}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWithWireRate(t *testing.T) {
	p := capture.New(capture.WithWireRate(8000))
	if p.WireRate() != 8000 {
		t.Errorf("WireRate() = %d, want 8000", p.WireRate())
	}
	chunk := p.BuildChunk(audio.SampleBuffer{Samples: []float32{0}, Rate: 8000, Channels: 1})
	if chunk.Format != wire.NewTag(8000) {
		t.Errorf("format tag %q, want %q", chunk.Format, wire.NewTag(8000))
	}
}
