// Package audio defines the audio data types, wire codec, and hardware device
// interfaces used by the Rehearsal voice pipeline.
//
// The codec half of the package is pure and stateless: [EncodePCM16] turns
// normalized float samples into a base64 PCM16 wire packet, [DecodePCM16]
// turns a base64 PCM16 payload back into a playable float buffer. Both ends
// of the Gemini Live protocol use fixed sample rates — 16000 Hz uplink,
// 24000 Hz downlink — which are protocol constants, not configuration.
//
// The device half ([Microphone], [Sink]) abstracts the host's audio hardware
// so that the live session controller can be tested without a sound card.
// Concrete implementations live in the miniaudio subpackage; test doubles in
// the mock subpackage.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// InputSampleRate is the sample rate of microphone audio sent to the
	// model. Fixed by the Gemini Live protocol.
	InputSampleRate = 16000

	// OutputSampleRate is the sample rate of synthesised audio received from
	// the model. Fixed by the Gemini Live protocol.
	OutputSampleRate = 24000

	// InputMIMEType tags outbound packets with their encoding and rate.
	InputMIMEType = "audio/pcm;rate=16000"
)

// ErrCodec is the sentinel wrapped by all codec failures: malformed base64
// payloads and byte streams that do not align to whole 16-bit samples.
// Callers use errors.Is(err, ErrCodec) to decide whether a bad chunk can be
// skipped without tearing down the session.
var ErrCodec = errors.New("malformed PCM16 payload")

// Packet is a framed unit of uplink audio ready for the wire: little-endian
// PCM16 samples at [InputSampleRate], base64-encoded, tagged with its MIME
// descriptor. Packets are ephemeral — produced from one microphone frame,
// sent once, never persisted.
type Packet struct {
	// Data is the base64-encoded PCM16 payload.
	Data string

	// MIMEType describes the payload encoding, always [InputMIMEType].
	MIMEType string
}

// Chunk is a decoded unit of downlink audio: normalized mono float samples
// at a known sample rate, ready for playback scheduling.
type Chunk struct {
	// Samples holds normalized mono samples in [-1, 1].
	Samples []float32

	// SampleRate is the playback rate in Hz.
	SampleRate int
}

// Duration returns the wall-clock playing time of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(c.Samples)) * int64(time.Second) / int64(c.SampleRate))
}

// EncodePCM16 converts normalized float samples into a wire [Packet]. Each
// sample is clamped to [-1, 1], scaled to the signed 16-bit range, packed
// little-endian, and base64-encoded. Deterministic, no side effects.
func EncodePCM16(samples []float32) Packet {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		f := math.Max(-1, math.Min(1, float64(s)))
		// Scale by 32768 and clamp the positive edge so that the decode
		// division by 32768 lands within one quantization step.
		v := int(f * 32768)
		if v > 32767 {
			v = 32767
		}
		raw[i*2] = byte(v)
		raw[i*2+1] = byte(v >> 8)
	}
	return Packet{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: InputMIMEType,
	}
}

// DecodePCM16 converts a base64-encoded PCM16 payload into a playable
// [Chunk] at sampleRate. The bytes are reinterpreted as signed 16-bit
// little-endian samples and rescaled to normalized floats.
//
// Malformed base64 and odd-length byte streams fail with an error wrapping
// [ErrCodec]; there is no silent truncation beyond the integer number of
// 16-bit samples the payload carries.
func DecodePCM16(data string, sampleRate int) (Chunk, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Chunk{}, fmt.Errorf("audio: decode base64: %w: %v", ErrCodec, err)
	}
	return DecodePCM16Bytes(raw, sampleRate)
}

// DecodePCM16Bytes is the raw-byte variant of [DecodePCM16] for callers that
// already hold the decoded payload.
func DecodePCM16Bytes(raw []byte, sampleRate int) (Chunk, error) {
	if len(raw)%2 != 0 {
		return Chunk{}, fmt.Errorf("audio: %w: odd byte count %d", ErrCodec, len(raw))
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}
	return Chunk{Samples: samples, SampleRate: sampleRate}, nil
}
