// Package session implements the duplex WebSocket connection to the speech
// service: outbound encoded capture chunks go up, decoded response audio and
// barge-in interrupts come down.
//
// The protocol exchanges JSON events. Audio is transmitted as base64-encoded
// PCM16 with a fixed format tag per direction ("pcm16@16000" outbound,
// "pcm16@24000" inbound). A single receive goroutine owns the inbound side
// and hands each decoded buffer to the playback sink in network arrival
// order — interrupts included — so scheduling decisions serialize exactly
// as the transport delivered them.
//
// The session performs no retries: a dead connection surfaces through
// [Session.Err] and reconnection policy belongs to the caller.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicewire/internal/observe"
	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/audio/playback"
	"github.com/MrWong99/voicewire/pkg/audio/wire"
)

// Sink receives the inbound side of the session in arrival order. It is
// implemented by [playback.Scheduler].
type Sink interface {
	OnChunkDecoded(buf audio.SampleBuffer) (*playback.Unit, error)
	OnInterrupt()
}

// Compile-time assertion that the playback scheduler satisfies Sink.
var _ Sink = (*playback.Scheduler)(nil)

// Config carries the parameters for one session.
type Config struct {
	// URL is the WebSocket endpoint of the speech service.
	URL string

	// APIKey authenticates the session as a bearer token. Optional.
	APIKey string

	// InboundRate is the sample rate of inbound audio in Hz. The session
	// rejects chunks tagged with any other rate.
	InboundRate int

	// OutboundTag is the format tag this client declares for outbound audio.
	OutboundTag wire.Tag
}

const (
	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
)

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type helloMessage struct {
	Type           string `json:"type"`
	InputFormat    string `json:"input_format"`
	OutputFormat   string `json:"output_format"`
	ProtocolNumber int    `json:"protocol"`
}

type inputChunkMessage struct {
	Type   string `json:"type"`
	Audio  string `json:"audio"` // base64-encoded PCM16
	Format string `json:"format"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverEvent struct {
	Type string `json:"type"`

	// output_audio.delta
	Audio  string `json:"audio,omitempty"`
	Format string `json:"format,omitempty"`

	// error event
	Error *serverErrorDetail `json:"error,omitempty"`
}

// serverErrorDetail represents the nested error object in a service error
// event: {"type":"error","error":{"code":"...","message":"..."}}.
type serverErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ── Session ───────────────────────────────────────────────────────────────────

// Session is an open duplex connection to the speech service. Create with
// [Dial]; all methods are safe for concurrent use. Callers must call Close
// when the session is no longer needed.
type Session struct {
	conn    *websocket.Conn
	sink    Sink
	cfg     Config
	metrics *observe.Metrics

	// sendMu serializes outbound writes; the websocket connection permits
	// only one writer at a time.
	sendMu sync.Mutex

	mu       sync.Mutex
	errVal   error
	errCb    func(error)
	closed   bool
	received chan struct{} // closed when the receive loop exits

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a [Session] during Dial.
type Option func(*Session)

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithErrorHandler registers a callback for non-fatal inbound errors
// (malformed chunks, format mismatches, service error events). The callback
// runs on the receive goroutine and must not block.
func WithErrorHandler(cb func(error)) Option {
	return func(s *Session) { s.errCb = cb }
}

// Dial connects to the speech service, announces the audio formats, and
// starts the receive loop feeding sink. The supplied ctx governs the dial
// only; the session stays open until [Session.Close].
func Dial(ctx context.Context, cfg Config, sink Sink, opts ...Option) (*Session, error) {
	dialCtx, span := observe.StartSpan(ctx, "session.dial")
	defer span.End()

	hdr := http.Header{}
	if cfg.APIKey != "" {
		hdr.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	conn, _, err := websocket.Dial(dialCtx, cfg.URL, &websocket.DialOptions{
		HTTPHeader: hdr,
	})
	if err != nil {
		return nil, fmt.Errorf("session: dial %q: %w", cfg.URL, err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	s := &Session{
		conn:     conn,
		sink:     sink,
		cfg:      cfg,
		received: make(chan struct{}),
		ctx:      sessCtx,
		cancel:   sessCancel,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	if err := s.writeJSON(helloMessage{
		Type:           "session.start",
		InputFormat:    string(cfg.OutboundTag),
		OutputFormat:   string(wire.NewTag(cfg.InboundRate)),
		ProtocolNumber: 1,
	}); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "session start failed")
		return nil, fmt.Errorf("session: start: %w", err)
	}

	go s.receiveLoop()
	go s.keepaliveLoop()

	return s, nil
}

// keepaliveLoop sends WebSocket pings so idle sessions (no capture, no
// response audio) are not dropped by intermediaries.
func (s *Session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.received:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *Session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// SendChunk transmits one outbound encoded chunk. Returns an error if the
// session is closed or the write fails.
func (s *Session) SendChunk(c wire.Chunk) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session: closed")
	}
	s.mu.Unlock()

	if err := s.writeJSON(inputChunkMessage{
		Type:   "input_audio.chunk",
		Audio:  c.Payload,
		Format: string(c.Format),
	}); err != nil {
		return fmt.Errorf("session: send chunk: %w", err)
	}
	s.metrics.ChunksSent.Add(s.ctx, 1)
	return nil
}

// receiveLoop reads events from the WebSocket and dispatches them in
// arrival order. It is the only goroutine that touches the sink.
func (s *Session) receiveLoop() {
	defer close(s.received)

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.setErr(err)
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			s.reportErr(fmt.Errorf("session: unmarshal event: %w", err))
			continue
		}

		s.handleServerEvent(&evt)
	}
}

func (s *Session) handleServerEvent(evt *serverEvent) {
	log := observe.Logger(s.ctx)

	switch evt.Type {
	case "output_audio.delta":
		buf, err := s.decodeChunk(evt)
		if err != nil {
			log.Warn("dropping inbound audio chunk", "err", err)
			s.reportErr(err)
			return
		}
		s.metrics.RecordChunkReceived(s.ctx, "ok")

		if _, err := s.sink.OnChunkDecoded(buf); err != nil {
			// Output device failure — reported upward, never masked.
			s.metrics.SchedulerErrors.Add(s.ctx, 1)
			log.Error("failed to schedule inbound chunk", "err", err)
			s.reportErr(err)
		}

	case "output_audio.interrupted":
		s.metrics.Interrupts.Add(s.ctx, 1)
		s.sink.OnInterrupt()

	case "error":
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		s.reportErr(fmt.Errorf("session: service error: %s", msg))
	}
}

// decodeChunk converts one inbound audio event into a sample buffer at the
// fixed inbound wire rate. Inbound audio needs no resampling — the inbound
// rate equals the output device rate by contract.
func (s *Session) decodeChunk(evt *serverEvent) (audio.SampleBuffer, error) {
	chunk := wire.Chunk{Payload: evt.Audio, Format: wire.Tag(evt.Format)}

	rate, err := chunk.Format.Rate()
	if err != nil {
		s.metrics.RecordChunkReceived(s.ctx, "bad_format")
		return audio.SampleBuffer{}, fmt.Errorf("session: inbound chunk: %w", err)
	}
	if rate != s.cfg.InboundRate {
		s.metrics.RecordChunkReceived(s.ctx, "bad_format")
		return audio.SampleBuffer{}, fmt.Errorf("session: inbound chunk rate %d, contract fixes %d", rate, s.cfg.InboundRate)
	}

	raw, err := chunk.Bytes()
	if err != nil {
		s.metrics.RecordChunkReceived(s.ctx, "malformed")
		return audio.SampleBuffer{}, fmt.Errorf("session: inbound chunk: %w", err)
	}

	return audio.SampleBuffer{
		Samples:  audio.Dequantize(audio.BytesToInt16(raw)),
		Rate:     s.cfg.InboundRate,
		Channels: 1,
	}, nil
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	if s.errVal == nil {
		s.errVal = err
	}
	s.mu.Unlock()
}

// reportErr surfaces a non-fatal error to the registered handler, if any.
func (s *Session) reportErr(err error) {
	s.mu.Lock()
	cb := s.errCb
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Err returns the error that terminated the receive loop, or nil if the
// session is healthy or was closed cleanly.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Done returns a channel closed when the receive loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.received
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "session closed")
}
