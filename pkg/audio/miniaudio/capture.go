// Package miniaudio implements the [audio.Microphone] and [audio.Sink]
// interfaces on top of the miniaudio library (via github.com/gen2brain/malgo),
// giving access to the default capture and playback devices on Linux, macOS
// and Windows without cgo bindings per platform.
//
// A single [Context] owns the underlying miniaudio context and hands out
// devices. Capture delivers mono float32 frames of [audio.FrameSize] samples
// at [audio.InputSampleRate]; playback renders mono float32 at
// [audio.OutputSampleRate] and exposes a sample-accurate clock derived from
// the number of frames handed to the device.
package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/rehearsal/pkg/audio"
)

// Context wraps a miniaudio context. It must be closed when no devices
// created from it are in use anymore.
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes the platform audio backend.
func NewContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Close tears down the backend. All devices must be stopped first.
func (c *Context) Close() error {
	if err := c.ctx.Uninit(); err != nil {
		c.ctx.Free()
		return fmt.Errorf("miniaudio: uninit context: %w", err)
	}
	c.ctx.Free()
	return nil
}

// Microphone captures mono float32 audio from the default input device.
// It implements [audio.Microphone].
type Microphone struct {
	parent *Context

	mu     sync.Mutex
	device *malgo.Device
}

var _ audio.Microphone = (*Microphone)(nil)

// Microphone creates a capture device bound to this context. The device is
// idle until Start is called.
func (c *Context) Microphone() *Microphone {
	return &Microphone{parent: c}
}

// Start opens the default capture device and begins delivering frames of
// [audio.FrameSize] samples at [audio.InputSampleRate] to fn. Device init
// failures are reported wrapping [audio.ErrPermission] because on every
// supported platform a missing or denied microphone surfaces as an init
// error rather than a distinct code.
func (m *Microphone) Start(fn audio.FrameFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return fmt.Errorf("miniaudio: capture already started")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = audio.InputSampleRate
	cfg.Alsa.NoMMap = 1

	// Mic callbacks run on the device thread; the frame buffer is only ever
	// touched there, so it needs no lock.
	var buf []float32
	onRecvFrames := func(_, pSample []byte, framecount uint32) {
		if framecount == 0 {
			return
		}
		buf = append(buf, decodeF32(pSample, int(framecount))...)
		for len(buf) >= audio.FrameSize {
			frame := make([]float32, audio.FrameSize)
			copy(frame, buf[:audio.FrameSize])
			buf = append(buf[:0], buf[audio.FrameSize:]...)
			fn(frame)
		}
	}

	device, err := malgo.InitDevice(m.parent.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("miniaudio: init capture device: %w: %v", audio.ErrPermission, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("miniaudio: start capture device: %w: %v", audio.ErrPermission, err)
	}
	m.device = device
	return nil
}

// Stop halts capture and releases the device. It is safe to call when the
// microphone was never started.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	device := m.device
	m.device = nil
	if err := device.Stop(); err != nil {
		device.Uninit()
		return fmt.Errorf("miniaudio: stop capture device: %w", err)
	}
	device.Uninit()
	return nil
}
