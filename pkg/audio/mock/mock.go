// Package mock provides in-memory mock implementations of [audio.Microphone]
// and [audio.Sink] for use in unit tests.
//
// All mocks are safe for concurrent use. The sink exposes a manually advanced
// playback clock and per-chunk handles whose completion the test triggers
// explicitly, so scheduling logic can be exercised deterministically without
// real time or hardware.
//
// Typical usage:
//
//	sink := mock.NewSink()
//	h, _ := sink.Play(chunk, 0)
//	sink.Complete(h.(*mock.Handle)) // simulate natural end of playback
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/rehearsal/pkg/audio"
)

// ─── Microphone ───────────────────────────────────────────────────────────────

// Microphone is a mock [audio.Microphone]. Set StartError to simulate a
// denied or missing device; call Emit to push frames into the registered
// callback as if the hardware produced them.
type Microphone struct {
	mu sync.Mutex

	// StartError is returned by Start. Wrap audio.ErrPermission to simulate
	// a permission failure.
	StartError error

	// CallCountStart and CallCountStop record method invocations.
	CallCountStart int
	CallCountStop  int

	fn audio.FrameFunc
}

// Start implements [audio.Microphone].
func (m *Microphone) Start(fn audio.FrameFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountStart++
	if m.StartError != nil {
		return m.StartError
	}
	m.fn = fn
	return nil
}

// Stop implements [audio.Microphone]. It clears the registered callback so
// subsequent Emit calls are dropped.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountStop++
	m.fn = nil
	return nil
}

// Emit delivers one frame to the registered callback, mimicking the capture
// device. Frames emitted after Stop (or before Start) are silently dropped,
// matching the real device contract.
func (m *Microphone) Emit(samples []float32) {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		fn(samples)
	}
}

// Started reports whether a frame callback is currently registered.
func (m *Microphone) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Handle is the mock [audio.PlaybackHandle] returned by [Sink.Play].
type Handle struct {
	// Chunk and Start record what was scheduled.
	Chunk audio.Chunk
	Start time.Duration

	once    sync.Once
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// Stop implements [audio.PlaybackHandle].
func (h *Handle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// Done implements [audio.PlaybackHandle].
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stopped reports whether Stop was called.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Sink is a mock [audio.Sink] with a manually advanced clock.
type Sink struct {
	mu sync.Mutex

	// PlayError, when set, is returned by every Play call.
	PlayError error

	// CallCountResume and CallCountClose record method invocations.
	CallCountResume int
	CallCountClose  int

	now     time.Duration
	handles []*Handle
	closed  bool
}

// NewSink creates a mock sink with its clock at zero.
func NewSink() *Sink {
	return &Sink{}
}

// Now implements [audio.Sink].
func (s *Sink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the mock playback clock forward by d.
func (s *Sink) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()
}

// Resume implements [audio.Sink].
func (s *Sink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountResume++
	return nil
}

// Play implements [audio.Sink]. The returned handle completes only when the
// test calls [Sink.Complete].
func (s *Sink) Play(chunk audio.Chunk, start time.Duration) (audio.PlaybackHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PlayError != nil {
		return nil, s.PlayError
	}
	h := &Handle{Chunk: chunk, Start: start, done: make(chan struct{})}
	s.handles = append(s.handles, h)
	return h, nil
}

// Close implements [audio.Sink].
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Handles returns all handles created so far, in scheduling order.
func (s *Sink) Handles() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handle, len(s.handles))
	copy(out, s.handles)
	return out
}

// Complete signals natural playback completion of h.
func (s *Sink) Complete(h *Handle) {
	h.once.Do(func() { close(h.done) })
}
