// Package mock provides test doubles for the live package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions.
// Use Session to script server-side event sequences and inspect which
// packets the consumer streamed out.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
//	sess.Emit(live.AudioChunk{Data: pkt.Data, SampleRate: 24000})
//	sess.Emit(live.TurnComplete{})
//	sess.Finish(nil)
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/rehearsal/pkg/audio"
	"github.com/MrWong99/rehearsal/pkg/provider/live"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg live.SessionConfig
}

// Provider is a mock implementation of live.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect
	// returns a new default Session.
	Session live.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectBarrier, if non-nil, makes Connect rendezvous with the test:
	// Connect first sends on the channel (the handshake is now in flight),
	// then blocks until the test sends back to release it. Use it to
	// exercise teardown while a connection attempt is pending.
	ConnectBarrier chan struct{}

	// ProviderCapabilities is returned by Capabilities.
	ProviderCapabilities live.Capabilities

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall

	// CapabilitiesCallCount is the number of times Capabilities was called.
	CapabilitiesCallCount int
}

var _ live.Provider = (*Provider)(nil)

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	if p.ConnectBarrier != nil {
		p.ConnectBarrier <- struct{}{}
		<-p.ConnectBarrier
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session == nil {
		p.Session = NewSession()
	}
	return p.Session, nil
}

// Capabilities returns ProviderCapabilities and counts the call.
func (p *Provider) Capabilities() live.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CapabilitiesCallCount++
	return p.ProviderCapabilities
}

// LastConnectConfig returns the config of the most recent Connect call, or a
// zero config if Connect was never called.
func (p *Provider) LastConnectConfig() live.SessionConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ConnectCalls) == 0 {
		return live.SessionConfig{}
	}
	return p.ConnectCalls[len(p.ConnectCalls)-1].Cfg
}

// Session is a scripted implementation of live.SessionHandle. The test plays
// the server side by calling Emit and Finish; the code under test consumes
// Events and streams packets via SendRealtimeInput.
type Session struct {
	mu sync.Mutex

	// SendErr, if non-nil, is returned by every SendRealtimeInput call.
	SendErr error

	// SentPackets records every packet passed to SendRealtimeInput.
	SentPackets []audio.Packet

	// CallCountClose is the number of times Close was called.
	CallCountClose int

	events chan live.Event
	errVal error
	closed bool
	doneCh chan struct{}
}

var _ live.SessionHandle = (*Session)(nil)

// NewSession creates a scripted session with a buffered event channel.
func NewSession() *Session {
	return &Session{
		events: make(chan live.Event, 64),
		doneCh: make(chan struct{}),
	}
}

// Emit queues one server-side event for the consumer. Panics if called after
// Finish, mirroring a send on a closed channel in the real implementation.
func (s *Session) Emit(ev live.Event) {
	s.events <- ev
}

// Finish ends the server side of the session: err (which may be nil) becomes
// the value reported by Err and the Events channel is closed.
func (s *Session) Finish(err error) {
	s.mu.Lock()
	if s.errVal == nil {
		s.errVal = err
	}
	s.mu.Unlock()
	close(s.events)
}

// SendRealtimeInput records the packet and returns SendErr.
func (s *Session) SendRealtimeInput(pkt audio.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: session closed")
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	s.SentPackets = append(s.SentPackets, pkt)
	return nil
}

// Events returns the scripted event channel.
func (s *Session) Events() <-chan live.Event { return s.events }

// Err returns the error passed to Finish, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close marks the session closed. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.doneCh)
	}
	return nil
}

// Closed reports whether Close has been called at least once.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed on the first Close call, letting tests wait for teardown.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// Sent returns a copy of all packets streamed so far.
func (s *Session) Sent() []audio.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Packet, len(s.SentPackets))
	copy(out, s.SentPackets)
	return out
}
