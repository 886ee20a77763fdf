// Package mock provides in-memory mock implementations of the
// [playback.OutputDevice] and [capture.Source] interfaces for use in unit
// tests.
//
// All mocks are safe for concurrent use. The [Device] records every PlayAt
// and Stop call, exposes a manually-advanced clock, and lets the test fire
// completion callbacks to simulate buffers finishing naturally.
//
// Typical usage:
//
//	dev := mock.NewDevice()
//	sched := playback.NewScheduler(dev)
//	sched.OnChunkDecoded(buf)
//	dev.Advance(1.5)
//	dev.CompleteAll()
package mock

import (
	"sync"

	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/audio/capture"
	"github.com/MrWong99/voicewire/pkg/audio/playback"
)

// Compile-time interface assertions.
var _ playback.OutputDevice = (*Device)(nil)
var _ capture.Source = (*Source)(nil)

// ─── Device ───────────────────────────────────────────────────────────────────

// Play records one PlayAt call made against a [Device].
type Play struct {
	// Buffer is the buffer that was scheduled.
	Buffer audio.SampleBuffer

	// Start is the requested start time.
	Start float64

	// Stopped reports whether the handle's Stop method was invoked.
	Stopped bool

	done func()
}

// Device is a mock implementation of [playback.OutputDevice] with a
// manually-controlled clock. Set PlayAtError to make PlayAt fail.
type Device struct {
	mu sync.Mutex

	// PlayAtError, when non-nil, is returned by every PlayAt call.
	PlayAtError error

	clock float64
	plays []*Play
}

// NewDevice creates a mock device with its clock at zero.
func NewDevice() *Device {
	return &Device{}
}

// Now implements [playback.OutputDevice]. Returns the manual clock.
func (d *Device) Now() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

// Advance moves the clock forward by dt seconds.
func (d *Device) Advance(dt float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock += dt
}

// SetClock sets the clock to an absolute reading.
func (d *Device) SetClock(t float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = t
}

// PlayAt implements [playback.OutputDevice]. The call is recorded and a
// handle is returned; nothing plays until the test fires the completion
// callback via [Device.Complete] or [Device.CompleteAll].
func (d *Device) PlayAt(buf audio.SampleBuffer, start float64, done func()) (playback.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.PlayAtError != nil {
		return nil, d.PlayAtError
	}
	p := &Play{Buffer: buf, Start: start, done: done}
	d.plays = append(d.plays, p)
	return &handle{dev: d, play: p}, nil
}

// Plays returns a snapshot of all recorded PlayAt calls in order.
func (d *Device) Plays() []*Play {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Play, len(d.plays))
	copy(out, d.plays)
	return out
}

// Complete fires the completion callback of the i-th recorded play, unless
// that play was stopped. Mirrors a real device reporting natural end of
// playback.
func (d *Device) Complete(i int) {
	d.mu.Lock()
	p := d.plays[i]
	stopped := p.Stopped
	d.mu.Unlock()

	if !stopped && p.done != nil {
		p.done()
	}
}

// CompleteAll fires the completion callbacks of every recorded play that has
// not been stopped.
func (d *Device) CompleteAll() {
	d.mu.Lock()
	plays := make([]*Play, len(d.plays))
	copy(plays, d.plays)
	d.mu.Unlock()

	for _, p := range plays {
		if !p.Stopped && p.done != nil {
			p.done()
		}
	}
}

type handle struct {
	dev  *Device
	play *Play
}

// Stop implements [playback.Handle]. Marks the play stopped so its
// completion callback never fires.
func (h *handle) Stop() {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	h.play.Stopped = true
}

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [capture.Source] backed by a buffered
// channel the test feeds directly.
type Source struct {
	mu sync.Mutex

	// CloseError is returned by [Source.Close].
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	ch chan audio.SampleBuffer
}

// NewSource creates a mock capture source with the given channel buffer depth.
func NewSource(depth int) *Source {
	return &Source{ch: make(chan audio.SampleBuffer, depth)}
}

// Emit delivers one capture buffer to the pipeline consumer.
func (s *Source) Emit(buf audio.SampleBuffer) {
	s.ch <- buf
}

// Finish closes the buffer channel, signalling end of capture.
func (s *Source) Finish() {
	close(s.ch)
}

// Buffers implements [capture.Source].
func (s *Source) Buffers() <-chan audio.SampleBuffer {
	return s.ch
}

// Close implements [capture.Source]. Returns CloseError.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}
