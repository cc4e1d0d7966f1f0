package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/rehearsal/pkg/audio"
)

// Sink renders mono float32 audio on the default output device. It implements
// [audio.Sink]. The playback clock counts frames handed to the device, so
// Now() advances monotonically in device time rather than wall time.
type Sink struct {
	parent *Context

	mu      sync.Mutex
	device  *malgo.Device
	frames  int64 // total frames rendered since creation
	playing []*playbackHandle
	closed  bool
}

var _ audio.Sink = (*Sink)(nil)

type playbackHandle struct {
	samples    []float32
	startFrame int64

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	closed  bool
}

var _ audio.PlaybackHandle = (*playbackHandle)(nil)

// Stop removes the handle from the mix without completing it; Done stays open.
func (h *playbackHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

func (h *playbackHandle) Done() <-chan struct{} { return h.done }

func (h *playbackHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (h *playbackHandle) complete() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	h.mu.Unlock()
}

// Sink creates a playback sink bound to this context. The output device is
// opened on the first Resume call.
func (c *Context) Sink() *Sink {
	return &Sink{parent: c}
}

// Now implements [audio.Sink].
func (s *Sink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return framesToDuration(s.frames)
}

// Resume opens and starts the default playback device if it is not running
// yet. Subsequent calls are no-ops.
func (s *Sink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("miniaudio: sink closed")
	}
	if s.device != nil {
		return nil
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = audio.OutputSampleRate
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(s.parent.ctx.Context, cfg, malgo.DeviceCallbacks{Data: s.render})
	if err != nil {
		return fmt.Errorf("miniaudio: init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("miniaudio: start playback device: %w", err)
	}
	s.device = device
	return nil
}

// Play schedules chunk to begin at the given position on the playback clock.
// Chunks whose sample rate differs from [audio.OutputSampleRate] are rejected;
// resampling is the caller's concern.
func (s *Sink) Play(chunk audio.Chunk, start time.Duration) (audio.PlaybackHandle, error) {
	if chunk.SampleRate != audio.OutputSampleRate {
		return nil, fmt.Errorf("miniaudio: unsupported playback rate %d", chunk.SampleRate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("miniaudio: sink closed")
	}
	h := &playbackHandle{
		samples:    chunk.Samples,
		startFrame: durationToFrames(start),
		done:       make(chan struct{}),
	}
	s.playing = append(s.playing, h)
	return h, nil
}

// Close stops the output device and discards all scheduled audio. Pending
// handles never complete.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	device := s.device
	s.device = nil
	s.playing = nil
	s.mu.Unlock()

	if device == nil {
		return nil
	}
	if err := device.Stop(); err != nil {
		device.Uninit()
		return fmt.Errorf("miniaudio: stop playback device: %w", err)
	}
	device.Uninit()
	return nil
}

// render runs on the device thread. It mixes every scheduled buffer that
// overlaps the requested window, advances the clock, and completes handles
// whose samples are exhausted.
func (s *Sink) render(pOutput, _ []byte, framecount uint32) {
	s.mu.Lock()
	base := s.frames
	s.frames += int64(framecount)

	mix := make([]float32, framecount)
	var finished []*playbackHandle
	kept := s.playing[:0]
	for _, h := range s.playing {
		if h.isStopped() {
			continue
		}
		end := h.startFrame + int64(len(h.samples))
		if end <= base {
			finished = append(finished, h)
			continue
		}
		for i := int64(0); i < int64(framecount); i++ {
			idx := base + i - h.startFrame
			if idx >= 0 && idx < int64(len(h.samples)) {
				mix[i] += h.samples[idx]
			}
		}
		if end <= base+int64(framecount) {
			finished = append(finished, h)
		} else {
			kept = append(kept, h)
		}
	}
	s.playing = kept
	s.mu.Unlock()

	for i, v := range mix {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint32(pOutput[i*4:], math.Float32bits(v))
	}
	for _, h := range finished {
		h.complete()
	}
}

func framesToDuration(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / audio.OutputSampleRate
}

func durationToFrames(d time.Duration) int64 {
	return int64(d * audio.OutputSampleRate / time.Second)
}

func decodeF32(raw []byte, frames int) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
