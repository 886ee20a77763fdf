// Package app wires all voicewire subsystems into a running client.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the capture and playback loops, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithOutputDevice, WithSender, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicewire/internal/config"
	"github.com/MrWong99/voicewire/internal/health"
	"github.com/MrWong99/voicewire/internal/observe"
	"github.com/MrWong99/voicewire/internal/session"
	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/audio/capture"
	"github.com/MrWong99/voicewire/pkg/audio/playback"
	"github.com/MrWong99/voicewire/pkg/audio/playback/otodevice"
	"github.com/MrWong99/voicewire/pkg/audio/wire"
)

// ErrSessionClosed is returned by Run when the speech service closes the
// session without reporting a transport or protocol error.
var ErrSessionClosed = errors.New("app: session closed by service")

// Sender is the outbound half of a dialog session: it accepts encoded
// chunks and reports session termination. *session.Session implements it.
type Sender interface {
	SendChunk(wire.Chunk) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

var _ Sender = (*session.Session)(nil)

// App owns all subsystem lifetimes and runs the voicewire audio loop:
// capture source → encode pipeline → session → scheduler → output device.
type App struct {
	cfg *config.Config
	log *slog.Logger
	met *observe.Metrics

	// Subsystems — initialised in New, torn down in Shutdown.
	source    capture.Source
	pipeline  *capture.Pipeline
	device    playback.OutputDevice
	scheduler *playback.Scheduler
	sender    Sender

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithOutputDevice injects an output device instead of opening the system
// audio device.
func WithOutputDevice(d playback.OutputDevice) Option {
	return func(a *App) { a.device = d }
}

// WithSender injects a session sender instead of dialing the speech service.
func WithSender(s Sender) Option {
	return func(a *App) { a.sender = s }
}

// WithMetrics overrides the metrics instance used for recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.met = m }
}

// WithLogger overrides the slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The capture source
// comes from main.go (platform capture is outside this module's scope, so a
// source is always injected). Use Option functions to inject test doubles
// for the output device and the session.
//
// When no sender is injected, New dials the speech service configured in
// cfg.Service and hands inbound audio to the playback scheduler.
func New(ctx context.Context, cfg *config.Config, source capture.Source, opts ...Option) (*App, error) {
	if source == nil {
		return nil, fmt.Errorf("app: capture source is required")
	}
	a := &App{
		cfg:    cfg,
		log:    slog.Default(),
		source: source,
	}
	for _, o := range opts {
		o(a)
	}
	if a.met == nil {
		a.met = observe.DefaultMetrics()
	}

	// ── 1. Encode pipeline ───────────────────────────────────────────────
	a.pipeline = capture.New(capture.WithWireRate(cfg.Service.OutboundRate))

	// ── 2. Output device ─────────────────────────────────────────────────
	if a.device == nil {
		dev, err := otodevice.New(cfg.Service.InboundRate)
		if err != nil {
			return nil, fmt.Errorf("app: open output device: %w", err)
		}
		a.device = dev
		a.closers = append(a.closers, dev.Close)
	}

	// ── 3. Playback scheduler ────────────────────────────────────────────
	a.scheduler = playback.NewScheduler(a.device, playback.WithLogger(a.log))

	// ── 4. Dialog session ────────────────────────────────────────────────
	if a.sender == nil {
		sess, err := session.Dial(ctx, session.Config{
			URL:         cfg.Service.URL,
			APIKey:      cfg.Service.APIKey,
			InboundRate: cfg.Service.InboundRate,
			OutboundTag: wire.NewTag(cfg.Service.OutboundRate),
		}, &meteredSink{sched: a.scheduler, dev: a.device, met: a.met},
			session.WithMetrics(a.met),
			session.WithErrorHandler(func(err error) {
				a.log.Warn("session event error", "err", err)
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("app: dial speech service: %w", err)
		}
		a.sender = sess
		a.closers = append(a.closers, sess.Close)
	}

	return a, nil
}

// Scheduler exposes the playback scheduler, mainly for introspection in
// tests and the startup summary.
func (a *App) Scheduler() *playback.Scheduler { return a.scheduler }

// HealthCheckers returns the readiness checks for the running client.
func (a *App) HealthCheckers() []health.Checker {
	return []health.Checker{health.SessionCheck(a.sender)}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the capture loop and blocks until ctx is cancelled, the capture
// source is exhausted, or the session ends. When the session ends with an
// error, that error is returned; a clean service-side close returns
// [ErrSessionClosed]. The playback timeline is reset before Run returns so a
// subsequent session starts from a clean clock.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.captureLoop(ctx) })
	g.Go(func() error { return a.watchSession(ctx) })
	g.Go(func() error { return a.reconcileGauges(ctx) })

	a.log.Info("voicewire running",
		"outbound_rate", a.pipeline.WireRate(),
		"inbound_rate", a.cfg.Service.InboundRate,
	)

	err := g.Wait()
	a.scheduler.Reset()
	return err
}

// captureLoop drains the capture source, encodes each buffer, and sends it
// over the session. A closed source ends the loop without error.
func (a *App) captureLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf, ok := <-a.source.Buffers():
			if !ok {
				a.log.Info("capture source exhausted")
				return nil
			}
			began := time.Now()
			chunk := a.pipeline.BuildChunk(buf)
			a.met.EncodeDuration.Record(ctx, time.Since(began).Seconds())

			if err := a.sender.SendChunk(chunk); err != nil {
				return fmt.Errorf("app: send chunk: %w", err)
			}
		}
	}
}

// watchSession ends the run when the session terminates.
func (a *App) watchSession(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.sender.Done():
		if err := a.sender.Err(); err != nil {
			return fmt.Errorf("app: session failed: %w", err)
		}
		return ErrSessionClosed
	}
}

// reconcileGauges periodically syncs the live-units gauge with the
// scheduler's live set. The up-down counter records deltas, so the loop
// tracks the last published value.
func (a *App) reconcileGauges(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	last := int64(0)
	for {
		select {
		case <-ctx.Done():
			// Zero the gauge on the way out.
			a.met.LiveUnits.Add(context.Background(), -last)
			return ctx.Err()
		case <-ticker.C:
			now := int64(a.scheduler.LiveCount())
			if d := now - last; d != 0 {
				a.met.LiveUnits.Add(ctx, d)
				last = now
			}
		}
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		// Stop feeding the session first.
		if err := a.source.Close(); err != nil {
			a.log.Warn("capture source close error", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Sink instrumentation ────────────────────────────────────────────────────

// meteredSink wraps the playback scheduler as a session sink and records
// the scheduling headroom for every accepted chunk.
type meteredSink struct {
	sched *playback.Scheduler
	dev   playback.OutputDevice
	met   *observe.Metrics
}

var _ session.Sink = (*meteredSink)(nil)

func (m *meteredSink) OnChunkDecoded(buf audio.SampleBuffer) (*playback.Unit, error) {
	unit, err := m.sched.OnChunkDecoded(buf)
	if err != nil {
		return nil, err
	}
	gap := unit.Start - m.dev.Now()
	if gap < 0 {
		gap = 0
	}
	m.met.ScheduleGap.Record(context.Background(), gap)
	return unit, nil
}

func (m *meteredSink) OnInterrupt() {
	m.sched.OnInterrupt()
}
