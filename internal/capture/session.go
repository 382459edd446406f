// Package capture accumulates a live transcript from a continuous STT
// recognition stream.
//
// A [Session] owns one logical capture: it opens a streaming session on an
// [stt.Provider], merges interim and final segments into a display state,
// and restarts the underlying stream on transient failure within a bounded
// retry budget. Finalized segments accumulate into a persistent buffer;
// interim segments are replaced, never accumulated, on each event.
//
// The state machine is Idle → Listening → (Idle | Listening): a stream that
// ends without producing speech gets a single delayed retry when auto-restart
// is enabled; a stream that ends after producing speech restarts immediately;
// session-establishment errors surface to the consumer and suppress restart.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/echolist/pkg/provider/stt"
)

// ErrSessionClosed is returned by [Session.Start] after [Session.Stop].
// Sessions are single-use; a new capture needs a new [Session].
var ErrSessionClosed = errors.New("capture: session closed")

// State is the capture lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
)

// Update types delivered on the Updates channel.
const (
	UpdateInterim = "interim"
	UpdateFinal   = "final"
	UpdateState   = "state"
	UpdateError   = "error"
)

// defaultRestartDelay is the fixed pause before retrying a stream that ended
// without producing any speech.
const defaultRestartDelay = 500 * time.Millisecond

// Update is a single event delivered to the capture consumer.
type Update struct {
	// Type is one of the Update* constants.
	Type string `json:"type"`

	// Text is the interim text or the finalized segment, depending on Type.
	Text string `json:"text,omitempty"`

	// Transcript is the full accumulated transcript after this event.
	Transcript string `json:"transcript,omitempty"`

	// State is set on UpdateState events.
	State State `json:"state,omitempty"`

	// Error is set on UpdateError events.
	Error string `json:"error,omitempty"`
}

// Config configures a capture [Session].
type Config struct {
	// Provider opens the underlying STT streams.
	Provider stt.Provider

	// Stream is the audio format passed to the provider.
	Stream stt.StreamConfig

	// AutoRestart enables restarting the stream when it ends. Without it,
	// any stream end transitions the session to Idle.
	AutoRestart bool

	// RestartDelay is the pause before the single no-speech retry.
	// Defaults to 500ms if zero.
	RestartDelay time.Duration
}

// Session is one live transcript capture. All methods are safe for
// concurrent use.
type Session struct {
	cfg     Config
	updates chan Update

	mu         sync.Mutex
	state      State
	handle     stt.SessionHandle
	transcript []string // finalized segments, in order
	interim    string   // latest interim text, replaced on each event
	retried    bool     // the single no-speech retry has been spent
	stopped    bool
	wg         sync.WaitGroup
}

// NewSession creates a [Session] in the Idle state.
func NewSession(cfg Config) *Session {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	return &Session{
		cfg:     cfg,
		state:   StateIdle,
		updates: make(chan Update, 64),
	}
}

// Updates returns the event stream for this session. The channel is closed
// after [Session.Stop] once the pump has drained.
func (s *Session) Updates() <-chan Update { return s.updates }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the accumulated finalized text.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.transcript, " ")
}

// Start clears any pending error state and opens the recognition stream.
// Starting a session that is already listening is a no-op. Sessions are
// single-use: once stopped, Start returns ErrSessionClosed because the
// Updates channel has been closed for good.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == StateListening {
		s.mu.Unlock()
		return nil
	}
	s.retried = false
	s.mu.Unlock()

	return s.open(ctx)
}

// Stop closes the stream and transitions to Idle. The Updates channel is
// closed once in-flight events are drained. Safe to call multiple times.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	handle := s.handle
	s.handle = nil
	s.mu.Unlock()

	if handle != nil {
		_ = handle.Close()
	}
	s.wg.Wait()
	s.setState(StateIdle)
	close(s.updates)
}

// SendAudio forwards a PCM chunk to the active stream. Audio sent while the
// session is not listening is dropped.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle.SendAudio(chunk)
}

// open establishes a provider stream and starts the pump goroutine.
// Establishment failures surface as an error update and suppress restart.
func (s *Session) open(ctx context.Context) error {
	handle, err := s.cfg.Provider.StartStream(ctx, s.cfg.Stream)
	if err != nil {
		s.emit(Update{Type: UpdateError, Error: err.Error()})
		s.setState(StateIdle)
		return err
	}

	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
	s.setState(StateListening)

	s.wg.Add(1)
	go s.pump(ctx, handle)
	return nil
}

// pump merges the stream's interim and final channels until both close,
// then decides whether to restart.
func (s *Session) pump(ctx context.Context, handle stt.SessionHandle) {
	defer s.wg.Done()

	interims := handle.Interims()
	finals := handle.Finals()
	sawSpeech := false

	for interims != nil || finals != nil {
		select {
		case t, ok := <-interims:
			if !ok {
				interims = nil
				continue
			}
			s.mu.Lock()
			s.interim = t.Text
			full := strings.Join(s.transcript, " ")
			s.mu.Unlock()
			s.emit(Update{Type: UpdateInterim, Text: t.Text, Transcript: full})

		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			if strings.TrimSpace(t.Text) == "" {
				continue
			}
			sawSpeech = true
			s.mu.Lock()
			s.transcript = append(s.transcript, strings.TrimSpace(t.Text))
			s.interim = ""
			full := strings.Join(s.transcript, " ")
			s.retried = false
			s.mu.Unlock()
			s.emit(Update{Type: UpdateFinal, Text: t.Text, Transcript: full})
		}
	}

	s.streamEnded(ctx, sawSpeech)
}

// streamEnded applies the restart policy after the provider stream closes.
func (s *Session) streamEnded(ctx context.Context, sawSpeech bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.handle = nil
	autoRestart := s.cfg.AutoRestart
	retrySpent := s.retried
	s.mu.Unlock()

	if !autoRestart || ctx.Err() != nil {
		s.setState(StateIdle)
		return
	}

	if !sawSpeech {
		// No-speech condition: one delayed retry, then give up.
		if retrySpent {
			slog.Debug("capture: no speech after retry, going idle")
			s.setState(StateIdle)
			return
		}
		s.mu.Lock()
		s.retried = true
		s.mu.Unlock()

		select {
		case <-time.After(s.cfg.RestartDelay):
		case <-ctx.Done():
			s.setState(StateIdle)
			return
		}
	}

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.openForRestart(ctx); err != nil {
			slog.Warn("capture: restart failed", "err", err)
		}
	}()
}

// openForRestart re-opens the stream without resetting the retry budget.
func (s *Session) openForRestart(ctx context.Context) error {
	handle, err := s.cfg.Provider.StartStream(ctx, s.cfg.Stream)
	if err != nil {
		s.emit(Update{Type: UpdateError, Error: err.Error()})
		s.setState(StateIdle)
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = handle.Close()
		return nil
	}
	s.handle = handle
	s.mu.Unlock()
	s.setState(StateListening)

	s.wg.Add(1)
	go s.pump(ctx, handle)
	return nil
}

// setState transitions the lifecycle state and notifies the consumer.
func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	s.emit(Update{Type: UpdateState, State: state})
}

// emit delivers an update without blocking the pump. A slow consumer loses
// interim updates first by construction of the buffer; finals are re-derivable
// from Transcript().
func (s *Session) emit(u Update) {
	select {
	case s.updates <- u:
	default:
	}
}
