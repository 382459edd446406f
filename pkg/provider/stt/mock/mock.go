// Package mock provides test doubles for the stt.Provider and
// stt.SessionHandle interfaces.
//
// A mock Session exposes its channels directly so tests can script interim
// and final transcripts, then close the session to simulate a stream ending.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/echolist/pkg/provider/stt"
)

// Session is a mock stt.SessionHandle. Construct with NewSession, feed
// transcripts via EmitInterim/EmitFinal, and end the stream with Close.
type Session struct {
	interims chan stt.Transcript
	finals   chan stt.Transcript

	mu       sync.Mutex
	closed   bool
	audio    [][]byte
	sendErr  error
	closeErr error
}

// NewSession returns a ready-to-use mock session with buffered channels.
func NewSession() *Session {
	return &Session{
		interims: make(chan stt.Transcript, 16),
		finals:   make(chan stt.Transcript, 16),
	}
}

// SetSendErr makes subsequent SendAudio calls return err.
func (s *Session) SetSendErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// SendAudio records the chunk. Returns the configured error, or an error if
// the session is closed.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	if s.sendErr != nil {
		return s.sendErr
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.audio = append(s.audio, c)
	return nil
}

// Audio returns all chunks passed to SendAudio.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

// EmitInterim delivers an interim transcript to the session's consumer.
func (s *Session) EmitInterim(text string) {
	s.interims <- stt.Transcript{Text: text, IsFinal: false}
}

// EmitFinal delivers a final transcript to the session's consumer.
func (s *Session) EmitFinal(text string) {
	s.finals <- stt.Transcript{Text: text, IsFinal: true}
}

// Interims implements stt.SessionHandle.
func (s *Session) Interims() <-chan stt.Transcript { return s.interims }

// Finals implements stt.SessionHandle.
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// Close closes both transcript channels, simulating the stream ending.
// Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.interims)
	close(s.finals)
	return s.closeErr
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Provider is a mock stt.Provider that hands out scripted sessions.
type Provider struct {
	mu sync.Mutex

	// Sessions is consumed one entry per StartStream call, in order. When
	// exhausted, StartStream returns a fresh NewSession().
	Sessions []*Session

	// StartErr, if non-nil, is returned by StartStream instead of a session.
	StartErr error

	// StartCalls records the StreamConfig of every StartStream invocation.
	StartCalls []stt.StreamConfig
}

// NewProvider returns a Provider that hands out the given sessions in order.
func NewProvider(sessions ...*Session) *Provider {
	return &Provider{Sessions: sessions}
}

// StartCount returns how many times StartStream has been called.
func (p *Provider) StartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartCalls)
}

// StartStream records the call and returns the next scripted session.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = append(p.StartCalls, cfg)
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	if len(p.Sessions) > 0 {
		s := p.Sessions[0]
		p.Sessions = p.Sessions[1:]
		return s, nil
	}
	return NewSession(), nil
}

// Compile-time interface checks.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)
