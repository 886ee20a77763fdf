package capture

import (
	"io"
	"sync"
	"time"

	"github.com/MrWong99/voicewire/pkg/audio"
)

// DefaultFrameDuration is the buffer length a [ReaderSource] emits.
const DefaultFrameDuration = 20 * time.Millisecond

// ReaderOption configures a [ReaderSource].
type ReaderOption func(*ReaderSource)

// WithFrameDuration overrides the emitted buffer length.
func WithFrameDuration(d time.Duration) ReaderOption {
	return func(s *ReaderSource) {
		if d > 0 {
			s.frame = d
		}
	}
}

// ReaderSource adapts a raw PCM16 little-endian stream (a pipe, a file, an
// OS capture utility on stdin) into a [Source]. It reads fixed-duration
// frames and emits them as normalised sample buffers.
type ReaderSource struct {
	r        io.Reader
	rate     int
	channels int
	frame    time.Duration

	ch chan audio.SampleBuffer

	mu     sync.Mutex
	closed bool
}

var _ Source = (*ReaderSource)(nil)

// NewReaderSource starts reading PCM16LE frames from r at the given sample
// rate and channel count. Reading begins immediately on a background
// goroutine; the buffer channel closes when r is exhausted or the source is
// closed.
func NewReaderSource(r io.Reader, rate, channels int, opts ...ReaderOption) *ReaderSource {
	s := &ReaderSource{
		r:        r,
		rate:     rate,
		channels: channels,
		frame:    DefaultFrameDuration,
		ch:       make(chan audio.SampleBuffer, 4),
	}
	for _, o := range opts {
		o(s)
	}
	go s.loop()
	return s
}

// Buffers implements [Source].
func (s *ReaderSource) Buffers() <-chan audio.SampleBuffer {
	return s.ch
}

// Close implements [Source]. It stops emission after the read in flight;
// it does not unblock a reader stuck on a silent stream.
func (s *ReaderSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *ReaderSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *ReaderSource) loop() {
	defer close(s.ch)

	frames := int(float64(s.rate) * s.frame.Seconds())
	if frames < 1 {
		frames = 1
	}
	raw := make([]byte, frames*s.channels*2)

	for {
		n, err := io.ReadFull(s.r, raw)
		if s.isClosed() {
			return
		}
		if n > 0 {
			pcm := audio.BytesToInt16(raw[:n])
			s.ch <- audio.SampleBuffer{
				Samples:  audio.Dequantize(pcm),
				Rate:     s.rate,
				Channels: s.channels,
			}
		}
		if err != nil {
			// EOF, short tail, or a broken pipe all end capture.
			return
		}
	}
}
