package audio_test

import (
	"math"
	"testing"

	"github.com/MrWong99/voicewire/pkg/audio"
)

func TestQuantize(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0.0, 0},
		{"positive full scale clamps", 1.0, 32767},
		{"negative full scale", -1.0, -32768},
		{"over range saturates high", 2.0, 32767},
		{"under range saturates low", -2.0, -32768},
		{"half scale", 0.5, 16384},
		{"nan maps to zero", float32(math.NaN()), 0},
		{"positive inf saturates", float32(math.Inf(1)), 32767},
		{"negative inf saturates", float32(math.Inf(-1)), -32768},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := audio.Quantize([]float32{tc.in})
			if got[0] != tc.want {
				t.Errorf("Quantize(%v) = %d, want %d", tc.in, got[0], tc.want)
			}
		})
	}
}

func TestQuantize_Rounds(t *testing.T) {
	// 0.00001 * 32768 = 0.32768, rounds to 0; 0.00002 * 32768 = 0.65536, rounds to 1.
	got := audio.Quantize([]float32{0.00001, 0.00002})
	if got[0] != 0 || got[1] != 1 {
		t.Errorf("got [%d %d], want [0 1]", got[0], got[1])
	}
}

func TestDequantize(t *testing.T) {
	got := audio.Dequantize([]int16{0, 16384, -32768, 32767})
	want := []float32{0, 0.5, -1.0, float32(32767) / 32768}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestQuantizeDequantize_ErrorBound(t *testing.T) {
	// Composition must stay within one quantisation step of the input.
	// Exact equality is not expected.
	samples := []float32{-1.0, -0.70710678, -0.333, 0, 0.00001, 0.25, 0.9999, 1.0}
	round := audio.Dequantize(audio.Quantize(samples))
	for i, s := range samples {
		want := float64(s)
		if want > float64(32767)/32768 {
			want = float64(32767) / 32768
		}
		if diff := math.Abs(float64(round[i]) - want); diff > 1.0/32768 {
			t.Errorf("sample %v: round-trip error %v exceeds 1/32768", s, diff)
		}
	}
}

func TestInt16Bytes_RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 256, -256}
	got := audio.BytesToInt16(audio.Int16ToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
}

func TestBytesToInt16_OddTrailingByte(t *testing.T) {
	got := audio.BytesToInt16([]byte{0x01, 0x02, 0xff})
	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
	if got[0] != 0x0201 {
		t.Errorf("got %#x, want 0x0201", got[0])
	}
}

func TestDownmixMono(t *testing.T) {
	stereo := []float32{0.5, 0.1, -0.5, -0.1}
	got := audio.DownmixMono(stereo, 2)
	want := []float32{0.3, -0.3}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("frame %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownmixMono_MonoPassthrough(t *testing.T) {
	mono := []float32{0.1, 0.2}
	got := audio.DownmixMono(mono, 1)
	if &got[0] != &mono[0] {
		t.Error("mono input should be returned unchanged")
	}
}

func TestSampleBuffer_Duration(t *testing.T) {
	tests := []struct {
		name string
		buf  audio.SampleBuffer
		want float64
	}{
		{"one second mono", audio.SampleBuffer{Samples: make([]float32, 24000), Rate: 24000, Channels: 1}, 1.0},
		{"half second stereo", audio.SampleBuffer{Samples: make([]float32, 16000), Rate: 16000, Channels: 2}, 0.5},
		{"empty", audio.SampleBuffer{Rate: 24000, Channels: 1}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.buf.Duration(); got != tc.want {
				t.Errorf("Duration() = %v, want %v", got, tc.want)
			}
		})
	}
}
