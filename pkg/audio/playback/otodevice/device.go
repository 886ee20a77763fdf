// Package otodevice implements [playback.OutputDevice] on top of the oto
// audio library, rendering scheduled sample buffers to the default system
// output.
//
// The device owns a single oto context fixed at the inbound wire format
// (16-bit LE PCM, mono by default) and a monotonic clock that starts at zero
// when the device is created. Each scheduled buffer is armed with a timer
// and handed to its own oto player when its start time arrives; stopping a
// handle before that point cancels the timer so the buffer never starts.
package otodevice

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/audio/playback"
)

// Compile-time interface assertion.
var _ playback.OutputDevice = (*Device)(nil)

// completionPoll is how often a playing buffer is checked for natural end.
const completionPoll = 10 * time.Millisecond

// Option configures a [Device].
type Option func(*Device)

// WithChannels sets the output channel count. Default is mono.
func WithChannels(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.channels = n
		}
	}
}

// Device renders scheduled buffers through oto. Create with [New]; all
// methods are safe for concurrent use.
type Device struct {
	ctx      *oto.Context
	rate     int
	channels int
	epoch    time.Time

	mu     sync.Mutex
	closed bool
}

// New opens the system output at the given sample rate. oto permits only one
// context per process, so create a single Device and share it.
func New(sampleRate int, opts ...Option) (*Device, error) {
	d := &Device{rate: sampleRate, channels: 1}
	for _, o := range opts {
		o(d)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: d.channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("otodevice: open context: %w", err)
	}
	<-ready

	d.ctx = ctx
	d.epoch = time.Now()
	return d, nil
}

// Now implements [playback.OutputDevice]. The clock is seconds since the
// device was created — monotonic and non-negative.
func (d *Device) Now() float64 {
	return time.Since(d.epoch).Seconds()
}

// PlayAt implements [playback.OutputDevice]. The buffer is quantised to
// 16-bit PCM once, up front, so the timer callback does no numeric work.
// The done callback fires from a watcher goroutine after the player drains —
// never synchronously from this call — and is suppressed if the handle is
// stopped first.
func (d *Device) PlayAt(buf audio.SampleBuffer, start float64, done func()) (playback.Handle, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("otodevice: device closed")
	}
	d.mu.Unlock()

	pcm := audio.Int16ToBytes(audio.Quantize(buf.Samples))
	h := &handle{dev: d, pcm: pcm, done: done}

	delay := time.Duration((start - d.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	h.timer = time.AfterFunc(delay, h.begin)
	return h, nil
}

// Close stops accepting new buffers. The underlying oto context cannot be
// torn down (one per process); in-flight handles are unaffected and should
// be stopped by their owner.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type handle struct {
	dev  *Device
	pcm  []byte
	done func()

	mu      sync.Mutex
	timer   *time.Timer
	player  *oto.Player
	stopped bool
}

// begin runs when the start timer fires: create the player and start the
// completion watcher.
func (h *handle) begin() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}

	// An empty buffer has nothing to render; report completion straight away
	// (already asynchronous — we are on the timer goroutine).
	if len(h.pcm) == 0 {
		go h.finish()
		return
	}

	h.player = h.dev.ctx.NewPlayer(bytes.NewReader(h.pcm))
	h.player.Play()
	go h.watch()
}

// watch polls the player until it drains, then reports completion.
func (h *handle) watch() {
	ticker := time.NewTicker(completionPoll)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		playing := h.player.IsPlaying()
		h.mu.Unlock()

		if !playing {
			h.finish()
			return
		}
	}
}

// finish closes the player and invokes the done callback once.
func (h *handle) finish() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	if h.player != nil {
		_ = h.player.Close()
	}
	h.mu.Unlock()

	if h.done != nil {
		h.done()
	}
}

// Stop implements [playback.Handle]. Cancels the start timer if the buffer
// has not begun, or closes the player mid-stream if it has. The done
// callback is suppressed either way.
func (h *handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	h.timer.Stop()
	if h.player != nil {
		_ = h.player.Close()
	}
}
