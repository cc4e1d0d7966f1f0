package live

import (
	"testing"
	"time"

	"github.com/MrWong99/rehearsal/pkg/audio"
	mockaudio "github.com/MrWong99/rehearsal/pkg/audio/mock"
)

// chunkOf builds a playback chunk of n samples at the output rate.
func chunkOf(n int) audio.Chunk {
	return audio.Chunk{Samples: make([]float32, n), SampleRate: audio.OutputSampleRate}
}

func waitTurn(t *testing.T, turns <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-turns:
		if got != want {
			t.Fatalf("turn signal = %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for turn signal %v", want)
	}
}

func TestSchedulerQueuesChunksBackToBack(t *testing.T) {
	t.Parallel()

	sink := mockaudio.NewSink()
	s := NewScheduler(sink, nil, nil)

	// 12000 samples at 24 kHz is 500ms.
	if err := s.Schedule(chunkOf(12000)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := s.Schedule(chunkOf(12000)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	handles := sink.Handles()
	if len(handles) != 2 {
		t.Fatalf("handles = %d, want 2", len(handles))
	}
	if handles[0].Start != 0 {
		t.Errorf("first chunk start = %v, want 0", handles[0].Start)
	}
	if want := 500 * time.Millisecond; handles[1].Start != want {
		t.Errorf("second chunk start = %v, want %v", handles[1].Start, want)
	}
	if want := time.Second; s.Cursor() != want {
		t.Errorf("cursor = %v, want %v", s.Cursor(), want)
	}
}

func TestSchedulerNeverSchedulesInThePast(t *testing.T) {
	t.Parallel()

	sink := mockaudio.NewSink()
	s := NewScheduler(sink, nil, nil)

	// The clock has moved past the cursor: the chunk starts now, not at 0.
	sink.Advance(300 * time.Millisecond)
	if err := s.Schedule(chunkOf(12000)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	h := sink.Handles()[0]
	if want := 300 * time.Millisecond; h.Start != want {
		t.Errorf("start = %v, want %v", h.Start, want)
	}
	if want := 800 * time.Millisecond; s.Cursor() != want {
		t.Errorf("cursor = %v, want %v", s.Cursor(), want)
	}
}

func TestSchedulerResumesSinkOnce(t *testing.T) {
	t.Parallel()

	sink := mockaudio.NewSink()
	s := NewScheduler(sink, nil, nil)

	_ = s.Schedule(chunkOf(100))
	_ = s.Schedule(chunkOf(100))

	if sink.CallCountResume != 1 {
		t.Errorf("Resume called %d times, want 1", sink.CallCountResume)
	}
}

func TestSchedulerTurnSignals(t *testing.T) {
	t.Parallel()

	sink := mockaudio.NewSink()
	turns := make(chan bool, 8)
	s := NewScheduler(sink, func(userTurn bool) { turns <- userTurn }, nil)

	// First chunk after silence hands the turn to the model.
	if err := s.Schedule(chunkOf(100)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	waitTurn(t, turns, false)

	// A second chunk while audio is queued changes nothing.
	if err := s.Schedule(chunkOf(100)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// Both chunks finishing hands the turn back to the user, exactly once.
	for _, h := range sink.Handles() {
		sink.Complete(h)
	}
	waitTurn(t, turns, true)

	select {
	case extra := <-turns:
		t.Fatalf("unexpected extra turn signal %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerInterruptFlushesEverything(t *testing.T) {
	t.Parallel()

	sink := mockaudio.NewSink()
	turns := make(chan bool, 8)
	s := NewScheduler(sink, func(userTurn bool) { turns <- userTurn }, nil)

	_ = s.Schedule(chunkOf(12000))
	_ = s.Schedule(chunkOf(12000))
	waitTurn(t, turns, false)

	s.Interrupt()

	for i, h := range sink.Handles() {
		if !h.Stopped() {
			t.Errorf("handle %d not stopped", i)
		}
	}
	if s.Active() != 0 {
		t.Errorf("active = %d, want 0", s.Active())
	}
	if s.Cursor() != 0 {
		t.Errorf("cursor = %v, want 0", s.Cursor())
	}
	waitTurn(t, turns, true)

	// The next response starts fresh from the clock position.
	sink.Advance(100 * time.Millisecond)
	if err := s.Schedule(chunkOf(12000)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	handles := sink.Handles()
	if want := 100 * time.Millisecond; handles[len(handles)-1].Start != want {
		t.Errorf("post-interrupt start = %v, want %v", handles[len(handles)-1].Start, want)
	}
}

func TestSchedulerInterruptWhileIdleIsSilent(t *testing.T) {
	t.Parallel()

	sink := mockaudio.NewSink()
	turns := make(chan bool, 8)
	s := NewScheduler(sink, func(userTurn bool) { turns <- userTurn }, nil)

	s.Interrupt()

	select {
	case got := <-turns:
		t.Fatalf("unexpected turn signal %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}
