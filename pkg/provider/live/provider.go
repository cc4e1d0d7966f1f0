// Package live defines the Provider interface for realtime speech-to-speech
// backends.
//
// A live provider wraps a voice AI service that accepts streamed microphone
// audio and returns synthesised speech in a single, stateful session —
// bypassing the separate STT → LLM → TTS pipeline entirely. The Gemini Live
// API is the reference backend.
//
// The central abstraction is SessionHandle: a bidirectional stream whose
// server side is surfaced as a single typed event channel. Every inbound
// server message is decomposed into one or more [Event] values so that the
// consumer can run one dispatch loop and tests can drive the consumer with
// synthetic event sequences instead of a live connection.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"

	"github.com/MrWong99/rehearsal/pkg/audio"
	"github.com/MrWong99/rehearsal/pkg/transcript"
)

// Event is one typed occurrence on the server side of a session. The concrete
// types are [AudioChunk], [Interrupted], [TranscriptFragment], [TurnComplete]
// and [StreamError]; no other implementations exist.
type Event interface {
	isEvent()
}

// AudioChunk carries one chunk of synthesised model speech, still in the
// provider's wire encoding (base64 PCM16). Decoding is left to the consumer
// so that a malformed chunk can be skipped without tearing down the stream.
type AudioChunk struct {
	// Data is the base64-encoded PCM16 payload.
	Data string

	// SampleRate is the PCM sample rate of the payload in Hz.
	SampleRate int
}

// Interrupted signals that the user started speaking over the model and the
// provider abandoned the in-flight response. All locally buffered or
// scheduled model audio is stale and must be discarded.
type Interrupted struct{}

// TranscriptFragment carries a partial transcription of either the user's
// speech or the model's spoken output. Fragments are unbounded in number per
// utterance and must be accumulated until a [TurnComplete] arrives.
type TranscriptFragment struct {
	Role transcript.Role
	Text string
}

// TurnComplete marks the end of a model response turn.
type TurnComplete struct{}

// StreamError reports a fatal mid-session failure. No further events follow;
// the channel is closed after it is delivered.
type StreamError struct {
	Err error
}

func (AudioChunk) isEvent()         {}
func (Interrupted) isEvent()        {}
func (TranscriptFragment) isEvent() {}
func (TurnComplete) isEvent()       {}
func (StreamError) isEvent()        {}

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Model overrides the provider's default model identifier when non-empty.
	Model string

	// Voice is the prebuilt voice the model speaks with. Empty selects the
	// provider default.
	Voice string

	// Instructions is the system-level prompt that fixes the model's persona
	// and behavioural constraints for the whole session.
	Instructions string

	// InputTranscription requests transcription of the user's speech.
	InputTranscription bool

	// OutputTranscription requests transcription of the model's spoken output.
	OutputTranscription bool
}

// Capabilities describes static properties of a live provider. The values
// are assumed constant for the lifetime of the Provider instance.
type Capabilities struct {
	// InputSampleRate is the PCM rate the provider expects on SendRealtimeInput.
	InputSampleRate int

	// OutputSampleRate is the PCM rate of [AudioChunk] payloads.
	OutputSampleRate int

	// MaxSessionDuration is the provider's hard session lifetime limit in
	// milliseconds. Zero means no documented limit.
	MaxSessionDuration int

	// Voices lists the prebuilt voice names available for this provider.
	Voices []string
}

// SessionHandle represents an open live session. It is an interface so that
// test code can supply scripted implementations without a provider connection.
//
// The session is the hot path of the audio pipeline: SendRealtimeInput is
// called from the capture callback's goroutine and must return quickly.
// Consumers must drain Events promptly to keep the provider's receive loop
// from stalling. All methods are safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendRealtimeInput streams one encoded microphone packet to the provider.
	// Returns an error if the session is closed or the write fails; a failed
	// send does not invalidate the session.
	SendRealtimeInput(pkt audio.Packet) error

	// Events returns the channel carrying all server-side events in arrival
	// order. The channel is closed when the session ends, after any final
	// [StreamError] has been delivered.
	Events() <-chan Event

	// Err returns the error that terminated the session, or nil if it ended
	// cleanly. Check after the Events channel closes.
	Err() error

	// Close terminates the session and releases all resources. The disconnect
	// is best-effort: transport errors during teardown are swallowed. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any live speech-to-speech backend.
//
// Implementations must be safe for concurrent use. A session is single-shot:
// after it terminates, recovery means opening a new session, never reviving
// the old handle.
type Provider interface {
	// Connect establishes a new live session with the given configuration.
	// The returned SessionHandle accepts audio immediately. The caller owns
	// the handle and is responsible for calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the underlying model. The
	// result is assumed constant for the lifetime of the Provider instance.
	Capabilities() Capabilities
}
