package live

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/rehearsal/pkg/audio"
)

// TurnFunc is invoked when the speaking turn changes. userTurn is true when
// no model audio is playing anymore (the user may speak) and false when
// model audio starts.
type TurnFunc func(userTurn bool)

// Scheduler lines up model audio chunks for gapless playback on an
// [audio.Sink].
//
// Chunks arrive faster than real time, so each one is scheduled at the later
// of the running cursor and the sink's current clock; the cursor then
// advances by the chunk's duration. Consecutive chunks of one response turn
// thus play back to back with no gaps and no overlap, regardless of network
// jitter on the arrival side.
//
// Scheduler is safe for concurrent use.
type Scheduler struct {
	sink   audio.Sink
	onTurn TurnFunc
	log    *slog.Logger

	mu      sync.Mutex
	cursor  time.Duration
	active  map[audio.PlaybackHandle]struct{}
	flushed chan struct{}
	resumed bool
}

// NewScheduler creates a Scheduler over sink. onTurn may be nil when the
// caller does not need turn signals.
func NewScheduler(sink audio.Sink, onTurn TurnFunc, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		sink:    sink,
		onTurn:  onTurn,
		log:     log,
		active:  make(map[audio.PlaybackHandle]struct{}),
		flushed: make(chan struct{}),
	}
}

// Schedule queues chunk for playback immediately after everything already
// scheduled. The first chunk after silence flips the turn to the model side.
func (s *Scheduler) Schedule(chunk audio.Chunk) error {
	s.mu.Lock()
	if !s.resumed {
		if err := s.sink.Resume(); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("live: resume playback: %w", err)
		}
		s.resumed = true
	}

	start := s.cursor
	if now := s.sink.Now(); now > start {
		start = now
	}
	h, err := s.sink.Play(chunk, start)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("live: schedule chunk: %w", err)
	}
	s.cursor = start + chunk.Duration()
	wasIdle := len(s.active) == 0
	s.active[h] = struct{}{}
	gen := s.flushed
	s.mu.Unlock()

	if wasIdle && s.onTurn != nil {
		s.onTurn(false)
	}
	go s.watch(h, gen)
	return nil
}

// watch waits for h to finish playing naturally and retires it. A flush of
// the generation the handle belongs to abandons the wait; Interrupt already
// emptied the active set in that case.
func (s *Scheduler) watch(h audio.PlaybackHandle, gen <-chan struct{}) {
	select {
	case <-h.Done():
	case <-gen:
		return
	}

	s.mu.Lock()
	if _, ok := s.active[h]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, h)
	idle := len(s.active) == 0
	s.mu.Unlock()

	if idle && s.onTurn != nil {
		s.onTurn(true)
	}
}

// Interrupt stops every scheduled chunk, empties the active set and rewinds
// the cursor to zero so the next response starts fresh. If anything was
// playing, the turn flips back to the user.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	handles := make([]audio.PlaybackHandle, 0, len(s.active))
	for h := range s.active {
		handles = append(handles, h)
	}
	hadActive := len(handles) > 0
	s.active = make(map[audio.PlaybackHandle]struct{})
	s.cursor = 0
	close(s.flushed)
	s.flushed = make(chan struct{})
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
	if hadActive && s.onTurn != nil {
		s.onTurn(true)
	}
}

// Active returns the number of chunks currently scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor returns the playback-clock position at which the next chunk would
// start if it arrived while the queue is ahead of the clock.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
