package audio

import (
	"errors"
	"time"
)

// ErrPermission is the sentinel wrapped by microphone acquisition failures —
// the device is missing, busy, or access was denied by the host. The live
// session controller surfaces it as a user-actionable error status rather
// than a crash.
var ErrPermission = errors.New("microphone unavailable")

// FrameSize is the number of samples in one capture frame. Chosen for the
// latency/throughput balance of the live protocol: 4096 samples at 16 kHz is
// 256 ms of audio per uplink packet.
const FrameSize = 4096

// FrameFunc receives one fixed-size frame of normalized mono samples at
// [InputSampleRate]. The slice is owned by the device and may be reused after
// the callback returns; implementations must copy if they retain it.
type FrameFunc func(samples []float32)

// Microphone is an exclusive handle on the host's audio input device.
//
// Exactly one Microphone is active per live session; the hardware is released
// on Stop so a subsequent session can re-acquire it. Implementations must be
// safe for concurrent use of Start and Stop.
type Microphone interface {
	// Start acquires the device and begins delivering [FrameSize]-sample
	// frames to fn from an internal goroutine. A device that is missing or
	// denied fails with an error wrapping [ErrPermission].
	Start(fn FrameFunc) error

	// Stop releases the device and clears the frame callback. No frame is
	// delivered after Stop returns, even if capture buffers are still in
	// flight. Idempotent.
	Stop() error
}

// PlaybackHandle tracks one scheduled chunk from scheduling until it either
// finishes naturally or is force-stopped.
type PlaybackHandle interface {
	// Stop cancels playback immediately. Safe to call after completion.
	Stop()

	// Done is closed when the chunk finishes playing naturally. It is NOT
	// closed by Stop — interruption and completion are distinct outcomes.
	Done() <-chan struct{}
}

// Sink renders scheduled audio chunks against a monotonic playback clock.
//
// The clock starts at zero when the sink is created and only advances while
// the output device is running; [Sink.Resume] must be called before the first
// chunk is scheduled or the leading audio would be dropped while the device
// spins up.
type Sink interface {
	// Now returns the current position of the playback clock.
	Now() time.Duration

	// Resume ensures the output device and its clock are running.
	Resume() error

	// Play schedules pcm to start at the given clock position and returns a
	// handle for cancellation and completion tracking. Chunks scheduled at
	// non-overlapping positions render gaplessly back to back.
	Play(chunk Chunk, start time.Duration) (PlaybackHandle, error)

	// Close stops the device and releases it. Pending chunks are discarded.
	// Idempotent.
	Close() error
}
