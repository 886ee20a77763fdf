package playback_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/audio/mock"
	"github.com/MrWong99/voicewire/pkg/audio/playback"
)

// secondsBuf builds a mono buffer of the given duration at 24kHz.
func secondsBuf(d float64) audio.SampleBuffer {
	return audio.SampleBuffer{
		Samples:  make([]float32, int(d*24000)),
		Rate:     24000,
		Channels: 1,
	}
}

func TestScheduler_Contiguity(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	// Chunks of 1.0s, 2.0s, 1.5s arriving while the clock stays behind the
	// running total: start times must be back-to-back.
	durations := []float64{1.0, 2.0, 1.5}
	wantStarts := []float64{0.0, 1.0, 3.0}

	for i, d := range durations {
		unit, err := s.OnChunkDecoded(secondsBuf(d))
		if err != nil {
			t.Fatalf("OnChunkDecoded(%d): %v", i, err)
		}
		if unit.Start != wantStarts[i] {
			t.Errorf("chunk %d: start %v, want %v", i, unit.Start, wantStarts[i])
		}
	}

	if got := s.NextStart(); got != 4.5 {
		t.Errorf("NextStart() = %v, want 4.5", got)
	}
	if got := s.LiveCount(); got != 3 {
		t.Errorf("LiveCount() = %v, want 3", got)
	}
}

func TestScheduler_IdleGap(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	// Leave the timeline at 2.0 by scheduling a 2s chunk at clock 0...
	if _, err := s.OnChunkDecoded(secondsBuf(2.0)); err != nil {
		t.Fatal(err)
	}
	// ...then idle until the clock is far past it.
	dev.SetClock(10.0)

	unit, err := s.OnChunkDecoded(secondsBuf(1.0))
	if err != nil {
		t.Fatal(err)
	}
	if unit.Start != 10.0 {
		t.Errorf("start = %v, want max(2.0, 10.0) = 10.0", unit.Start)
	}
	if got := s.NextStart(); got != 11.0 {
		t.Errorf("NextStart() = %v, want 11.0", got)
	}
}

func TestScheduler_InterruptClearsState(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	active, _ := s.OnChunkDecoded(secondsBuf(1.0)) // playing at clock 0
	pending, _ := s.OnChunkDecoded(secondsBuf(1.0))
	if pending.State() != playback.StateScheduled {
		t.Fatalf("second unit state = %v, want SCHEDULED", pending.State())
	}

	s.OnInterrupt()

	if got := s.LiveCount(); got != 0 {
		t.Errorf("LiveCount() after interrupt = %d, want 0", got)
	}
	if got := s.NextStart(); got != 0 {
		t.Errorf("NextStart() after interrupt = %v, want unset sentinel 0", got)
	}
	for i, p := range dev.Plays() {
		if !p.Stopped {
			t.Errorf("play %d was not stopped", i)
		}
	}
	if active.State() != playback.StateCancelled {
		t.Errorf("active unit state = %v, want CANCELLED", active.State())
	}

	// The not-yet-started unit never becomes Active, even once the clock
	// passes its original start time.
	dev.SetClock(5.0)
	if pending.State() != playback.StateCancelled {
		t.Errorf("pending unit state = %v, want CANCELLED", pending.State())
	}
}

func TestScheduler_ScheduleAfterInterruptStartsNow(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	s.OnChunkDecoded(secondsBuf(5.0))
	dev.SetClock(1.0)
	s.OnInterrupt()

	unit, err := s.OnChunkDecoded(secondsBuf(1.0))
	if err != nil {
		t.Fatal(err)
	}
	if unit.Start != 1.0 {
		t.Errorf("post-interrupt start = %v, want current clock 1.0", unit.Start)
	}
}

func TestScheduler_ZeroDurationBuffer(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	s.OnChunkDecoded(secondsBuf(2.0))
	before := s.NextStart()

	unit, err := s.OnChunkDecoded(audio.SampleBuffer{Rate: 24000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.NextStart(); got != before {
		t.Errorf("NextStart() changed from %v to %v on empty buffer", before, got)
	}

	// Still scheduled on the device, and it completes normally.
	if len(dev.Plays()) != 2 {
		t.Fatalf("device received %d plays, want 2", len(dev.Plays()))
	}
	dev.Complete(1)
	if unit.State() != playback.StateFinished {
		t.Errorf("empty unit state = %v, want FINISHED", unit.State())
	}
}

func TestScheduler_NaturalCompletionRemovesUnit(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	unit, _ := s.OnChunkDecoded(secondsBuf(1.0))
	dev.SetClock(1.0)
	dev.Complete(0)

	if got := s.LiveCount(); got != 0 {
		t.Errorf("LiveCount() after completion = %d, want 0", got)
	}
	if unit.State() != playback.StateFinished {
		t.Errorf("unit state = %v, want FINISHED", unit.State())
	}

	// Timeline is untouched by natural completion.
	if got := s.NextStart(); got != 1.0 {
		t.Errorf("NextStart() = %v, want 1.0", got)
	}
}

func TestScheduler_LateCompletionAfterInterrupt(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	unit, _ := s.OnChunkDecoded(secondsBuf(1.0))
	s.OnInterrupt()

	// A completion callback racing in after the sweep must not resurrect or
	// re-label the unit.
	dev.CompleteAll()
	if unit.State() != playback.StateCancelled {
		t.Errorf("unit state = %v, want CANCELLED (terminal states are sticky)", unit.State())
	}
}

func TestScheduler_DeviceErrorPropagates(t *testing.T) {
	dev := mock.NewDevice()
	wantErr := errors.New("device unavailable")
	dev.PlayAtError = wantErr
	s := playback.NewScheduler(dev)

	_, err := s.OnChunkDecoded(secondsBuf(1.0))
	if !errors.Is(err, wantErr) {
		t.Fatalf("OnChunkDecoded error = %v, want %v", err, wantErr)
	}
	if got := s.LiveCount(); got != 0 {
		t.Errorf("failed schedule left %d live units", got)
	}
	if got := s.NextStart(); got != 0 {
		t.Errorf("failed schedule advanced NextStart to %v", got)
	}
}

func TestScheduler_Reset(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	s.OnChunkDecoded(secondsBuf(3.0))
	dev.SetClock(1.25)
	s.Reset()

	if got := s.LiveCount(); got != 0 {
		t.Errorf("LiveCount() after reset = %d, want 0", got)
	}
	if got := s.NextStart(); got != 1.25 {
		t.Errorf("NextStart() after reset = %v, want current clock 1.25", got)
	}
	if p := dev.Plays()[0]; !p.Stopped {
		t.Error("reset did not stop the live unit")
	}
}

func TestScheduler_ActiveStateFollowsClock(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	s.OnChunkDecoded(secondsBuf(1.0))
	unit, _ := s.OnChunkDecoded(secondsBuf(1.0)) // starts at 1.0

	if got := unit.State(); got != playback.StateScheduled {
		t.Errorf("state at clock 0 = %v, want SCHEDULED", got)
	}
	dev.SetClock(1.0)
	if got := unit.State(); got != playback.StateActive {
		t.Errorf("state at clock 1.0 = %v, want ACTIVE", got)
	}
}

func TestScheduler_ConcurrentScheduleAndInterrupt(t *testing.T) {
	dev := mock.NewDevice()
	s := playback.NewScheduler(dev)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				s.OnChunkDecoded(secondsBuf(0.02))
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				s.OnInterrupt()
			}
		}()
	}
	wg.Wait()

	// Final interrupt must leave nothing live and the sentinel unset.
	s.OnInterrupt()
	if got := s.LiveCount(); got != 0 {
		t.Errorf("LiveCount() = %d, want 0", got)
	}
	if got := s.NextStart(); got != 0 {
		t.Errorf("NextStart() = %v, want 0", got)
	}
}
