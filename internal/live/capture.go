package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/rehearsal/internal/observe"
	"github.com/MrWong99/rehearsal/pkg/audio"
	providerlive "github.com/MrWong99/rehearsal/pkg/provider/live"
)

// capture pumps microphone frames into a live session: each frame is encoded
// to a base64 PCM16 packet and streamed out. A failed send is logged and
// dropped; the stream itself decides when it is broken.
type capture struct {
	mic     audio.Microphone
	sess    providerlive.SessionHandle
	log     *slog.Logger
	metrics *observe.Metrics

	mu      sync.Mutex
	started bool
}

func newCapture(mic audio.Microphone, sess providerlive.SessionHandle, log *slog.Logger, metrics *observe.Metrics) *capture {
	return &capture{mic: mic, sess: sess, log: log, metrics: metrics}
}

// start begins frame delivery. A permission failure is returned wrapping
// [audio.ErrPermission] so the caller can keep the session open without a
// microphone.
func (c *capture) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("live: capture already started")
	}

	err := c.mic.Start(func(samples []float32) {
		pkt := audio.EncodePCM16(samples)
		if sendErr := c.sess.SendRealtimeInput(pkt); sendErr != nil {
			c.log.Warn("dropping mic packet", "error", sendErr)
			return
		}
		if c.metrics != nil {
			c.metrics.PacketsSent.Add(context.Background(), 1)
		}
	})
	if err != nil {
		if errors.Is(err, audio.ErrPermission) {
			return err
		}
		return fmt.Errorf("live: start capture: %w", err)
	}
	c.started = true
	return nil
}

// stop halts frame delivery. Safe to call when capture never started.
func (c *capture) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	if err := c.mic.Stop(); err != nil {
		c.log.Warn("stopping microphone", "error", err)
	}
}
