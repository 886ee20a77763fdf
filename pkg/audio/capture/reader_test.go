package capture_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/audio/capture"
)

func collectBuffers(t *testing.T, src *capture.ReaderSource) []audio.SampleBuffer {
	t.Helper()
	var got []audio.SampleBuffer
	timeout := time.After(3 * time.Second)
	for {
		select {
		case buf, ok := <-src.Buffers():
			if !ok {
				return got
			}
			got = append(got, buf)
		case <-timeout:
			t.Fatal("reader source never closed its channel")
		}
	}
}

func TestReaderSource_FramesStream(t *testing.T) {
	// 50 ms of mono audio at 16 kHz = 800 samples = 1600 bytes; with 20 ms
	// frames that is two full frames plus a 10 ms tail.
	pcm := make([]int16, 800)
	for i := range pcm {
		pcm[i] = int16(i)
	}
	src := capture.NewReaderSource(bytes.NewReader(audio.Int16ToBytes(pcm)), 16000, 1)
	defer src.Close()

	got := collectBuffers(t, src)
	if len(got) != 3 {
		t.Fatalf("got %d buffers, want 3 (two full frames plus tail)", len(got))
	}
	wantLens := []int{320, 320, 160}
	total := 0
	for i, buf := range got {
		if len(buf.Samples) != wantLens[i] {
			t.Errorf("buffer %d has %d samples, want %d", i, len(buf.Samples), wantLens[i])
		}
		if buf.Rate != 16000 || buf.Channels != 1 {
			t.Errorf("buffer %d format %d/%d, want 16000/1", i, buf.Rate, buf.Channels)
		}
		total += len(buf.Samples)
	}
	if total != 800 {
		t.Errorf("total samples %d, want 800", total)
	}

	// Spot-check the dequantised values round-trip.
	if got[0].Samples[1] != float32(1)/32768 {
		t.Errorf("sample 1 = %v, want %v", got[0].Samples[1], float32(1)/32768)
	}
}

func TestReaderSource_EmptyStream(t *testing.T) {
	src := capture.NewReaderSource(bytes.NewReader(nil), 16000, 1)
	defer src.Close()

	if got := collectBuffers(t, src); len(got) != 0 {
		t.Fatalf("got %d buffers from empty stream, want 0", len(got))
	}
}

func TestReaderSource_StereoFrames(t *testing.T) {
	// One 20 ms stereo frame at 8 kHz = 160 frames = 320 interleaved samples.
	pcm := make([]int16, 320)
	src := capture.NewReaderSource(bytes.NewReader(audio.Int16ToBytes(pcm)), 8000, 2)
	defer src.Close()

	got := collectBuffers(t, src)
	if len(got) != 1 {
		t.Fatalf("got %d buffers, want 1", len(got))
	}
	if got[0].Channels != 2 || len(got[0].Samples) != 320 {
		t.Errorf("buffer = %d samples / %d channels, want 320 / 2", len(got[0].Samples), got[0].Channels)
	}
	if got[0].Frames() != 160 {
		t.Errorf("Frames() = %d, want 160", got[0].Frames())
	}
}

func TestReaderSource_FrameDurationOption(t *testing.T) {
	pcm := make([]int16, 160) // 10 ms at 16 kHz
	src := capture.NewReaderSource(bytes.NewReader(audio.Int16ToBytes(pcm)), 16000, 1,
		capture.WithFrameDuration(10*time.Millisecond))
	defer src.Close()

	got := collectBuffers(t, src)
	if len(got) != 1 {
		t.Fatalf("got %d buffers, want 1", len(got))
	}
	if len(got[0].Samples) != 160 {
		t.Errorf("buffer has %d samples, want 160", len(got[0].Samples))
	}
}
