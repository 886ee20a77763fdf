// Package playback schedules decoded audio buffers for gapless playback on
// an external output device and owns the barge-in interruption path.
//
// The central type is [Scheduler]: decoded chunks arrive asynchronously via
// [Scheduler.OnChunkDecoded] and are assigned start times so that each
// buffer begins exactly when the previous one ends — no silence, no overlap
// — while an interrupt flushes every in-flight buffer instantly.
//
// The scheduler owns its live-unit set exclusively; no other component
// touches it. All exported methods are safe for concurrent use: callers on
// real OS threads get the same atomicity a cooperative single-threaded event
// loop would provide.
package playback

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/voicewire/pkg/audio"
)

// OutputDevice is the external playback collaborator. Implementations wrap a
// real audio backend (see the otodevice subpackage) or a test double.
//
// The clock is monotonic, starts at or above zero, and never decreases. The
// done callback passed to PlayAt must be invoked exactly once when the
// buffer finishes playing naturally — including for zero-length buffers —
// and must be invoked asynchronously, never from inside the PlayAt call
// itself. Stopping a handle suppresses the done callback.
type OutputDevice interface {
	// Now returns the device's current clock reading in seconds.
	Now() float64

	// PlayAt schedules buf to begin playing when the clock reaches start.
	// A start time at or before the current reading means "play now".
	PlayAt(buf audio.SampleBuffer, start float64, done func()) (Handle, error)
}

// Handle allows early termination of one scheduled or playing buffer.
type Handle interface {
	// Stop immediately and permanently silences the buffer. Stopping a
	// buffer whose start time has not been reached prevents it from ever
	// starting. Stop is idempotent.
	Stop()
}

// UnitState describes where a [Unit] is in its lifecycle.
type UnitState int

const (
	// StateScheduled means the unit has a start time the clock has not reached.
	StateScheduled UnitState = iota

	// StateActive means the clock has passed the unit's start time and the
	// device is (or should be) rendering it.
	StateActive

	// StateFinished means the unit played to its natural end.
	StateFinished

	// StateCancelled means the unit was stopped by an interrupt or reset.
	StateCancelled
)

// String returns the human-readable name of the state.
func (s UnitState) String() string {
	switch s {
	case StateScheduled:
		return "SCHEDULED"
	case StateActive:
		return "ACTIVE"
	case StateFinished:
		return "FINISHED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Unit is one scheduled, independently cancellable buffer of playback.
type Unit struct {
	// ID uniquely identifies the unit for the lifetime of the scheduler.
	ID uuid.UUID

	// Buffer is the decoded audio the unit plays.
	Buffer audio.SampleBuffer

	// Start is the clock position at which playback begins.
	Start float64

	handle Handle
	sched  *Scheduler

	mu       sync.Mutex
	terminal UnitState // StateFinished or StateCancelled once set; zero means live
	done     bool
}

// State returns the unit's current lifecycle state. The Scheduled→Active
// transition is derived from the device clock at observation time rather
// than polled; terminal states are sticky — a cancelled unit never reports
// Active even after the clock passes its start time.
func (u *Unit) State() UnitState {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return u.terminal
	}
	if u.sched.device.Now() >= u.Start {
		return StateActive
	}
	return StateScheduled
}

// finish marks the unit terminal. Reports whether this call won; later calls
// are no-ops, so Finished and Cancelled can never both apply.
func (u *Unit) finish(s UnitState) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return false
	}
	u.done = true
	u.terminal = s
	return true
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithLogger overrides the slog logger used for scheduling events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// Scheduler assigns start times to decoded buffers so they play
// back-to-back, tracks every in-flight unit for interruption, and resets
// cleanly on session teardown.
type Scheduler struct {
	device OutputDevice
	log    *slog.Logger

	mu        sync.Mutex
	nextStart float64 // earliest time the next unit may begin; 0 = unset
	live      map[uuid.UUID]*Unit
}

// NewScheduler creates a scheduler driving the given output device.
func NewScheduler(device OutputDevice, opts ...Option) *Scheduler {
	s := &Scheduler{
		device: device,
		log:    slog.Default(),
		live:   make(map[uuid.UUID]*Unit),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnChunkDecoded schedules one fully-decoded inbound buffer for playback.
// Callers must invoke it in transport arrival order; the scheduler does not
// reorder.
//
// The start time is max(nextStart, clock now): an idle scheduler plays
// immediately instead of in the past, and a busy one extends the contiguous
// timeline. Device failures propagate unmasked; on error no unit is
// registered and the timeline is unchanged.
func (s *Scheduler) OnChunkDecoded(buf audio.SampleBuffer) (*Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.device.Now()
	start := s.nextStart
	if now > start {
		start = now
	}

	unit := &Unit{
		ID:     uuid.New(),
		Buffer: buf,
		Start:  start,
		sched:  s,
	}

	handle, err := s.device.PlayAt(buf, start, func() { s.complete(unit) })
	if err != nil {
		return nil, err
	}
	unit.handle = handle
	s.live[unit.ID] = unit

	// A zero-length buffer is scheduled and completes immediately without
	// advancing the timeline.
	if !buf.Empty() {
		s.nextStart = start + buf.Duration()
	}

	s.log.Debug("scheduled playback unit",
		"unit", unit.ID,
		"start", start,
		"duration", buf.Duration(),
		"next_start", s.nextStart,
	)
	return unit, nil
}

// complete removes a naturally-finished unit from the live set. Invoked by
// the device's completion callback; a unit already swept by an interrupt or
// reset is left untouched.
func (s *Scheduler) complete(u *Unit) {
	if !u.finish(StateFinished) {
		return
	}
	s.mu.Lock()
	delete(s.live, u.ID)
	s.mu.Unlock()
}

// OnInterrupt handles barge-in: the user started speaking over the agent,
// so every live unit — scheduled or active — is stopped and forgotten, and
// the timeline resets to the unset sentinel so the next chunk schedules
// relative to "now". The stop-sweep and the sentinel reset are atomic with
// respect to OnChunkDecoded: no unit can slip in between and escape
// cancellation.
func (s *Scheduler) OnInterrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.sweepLocked()
	s.nextStart = 0

	if n > 0 {
		s.log.Info("playback interrupted", "cancelled_units", n)
	}
}

// Reset stops and clears all live units like [Scheduler.OnInterrupt] and
// reinitialises the timeline to the clock's current reading. Used when the
// upstream session is torn down and recreated.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.sweepLocked()
	s.nextStart = s.device.Now()

	s.log.Debug("scheduler reset", "cancelled_units", n, "next_start", s.nextStart)
}

// sweepLocked stops every live unit and empties the set. Caller holds s.mu.
func (s *Scheduler) sweepLocked() int {
	n := 0
	for id, u := range s.live {
		if u.finish(StateCancelled) {
			u.handle.Stop()
			n++
		}
		delete(s.live, id)
	}
	return n
}

// NextStart returns the current timeline position: the earliest clock time
// the next decoded chunk may begin playing. Zero means unset.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// LiveCount returns the number of units currently scheduled or active.
func (s *Scheduler) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
