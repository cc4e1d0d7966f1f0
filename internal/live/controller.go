// Package live runs the realtime conversation loop: microphone capture,
// bidirectional provider streaming, gapless playback scheduling, interruption
// handling and transcript reconstruction.
//
// A [Controller] is single shot. Start moves it Idle → Connecting →
// Connected; a stream failure or Stop moves it to a terminal state. Retrying
// after a failure means building a fresh Controller; terminal states are
// never left.
//
// All server events of a session pass through one dispatch goroutine, so the
// scheduler, the transcript aggregator and the status machine only ever see
// events in arrival order.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/rehearsal/internal/observe"
	"github.com/MrWong99/rehearsal/pkg/audio"
	providerlive "github.com/MrWong99/rehearsal/pkg/provider/live"
	"github.com/MrWong99/rehearsal/pkg/transcript"
)

// ErrCredentialMissing is returned by [Controller.Start] when no API
// credential is configured. No connection attempt is made in that case.
var ErrCredentialMissing = errors.New("live: api key missing")

// StatusFunc is invoked on every status transition. detail carries a
// human-readable reason for error states and is empty otherwise.
type StatusFunc func(status Status, detail string)

// Config assembles everything a [Controller] needs.
type Config struct {
	// Provider opens the realtime session.
	Provider providerlive.Provider

	// Microphone is the capture device. Required, but a microphone that
	// fails with a permission error at start time does not prevent the
	// session from running output-only.
	Microphone audio.Microphone

	// Sink plays the model's speech.
	Sink audio.Sink

	// Credential is the provider API key. Checked before any dial.
	Credential string

	// Session is the provider session configuration (model, voice,
	// instructions, transcription flags).
	Session providerlive.SessionConfig

	// OnStatus receives lifecycle transitions. Optional.
	OnStatus StatusFunc

	// OnTurn receives speaking-turn changes. Optional.
	OnTurn TurnFunc

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics defaults to no recording when nil.
	Metrics *observe.Metrics
}

// Controller owns one live conversation from connect to teardown.
type Controller struct {
	provider providerlive.Provider
	sessCfg  providerlive.SessionConfig
	cred     string
	onStatus StatusFunc
	log      *slog.Logger
	metrics  *observe.Metrics

	scheduler *Scheduler
	capture   *capture
	agg       *transcript.Aggregator
	mic       audio.Microphone

	mu           sync.Mutex
	status       Status
	detail       string
	sess         providerlive.SessionHandle
	started      bool
	stopped      bool
	dispatchDone chan struct{}
}

// NewController validates cfg and builds an idle Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("live: no provider configured")
	}
	if cfg.Microphone == nil {
		return nil, fmt.Errorf("live: no microphone configured")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("live: no playback sink configured")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		provider: cfg.Provider,
		sessCfg:  cfg.Session,
		cred:     cfg.Credential,
		onStatus: cfg.OnStatus,
		log:      log,
		metrics:  cfg.Metrics,
		agg:      transcript.NewAggregator(),
		mic:      cfg.Microphone,
		status:   StatusIdle,
	}
	c.scheduler = NewScheduler(cfg.Sink, cfg.OnTurn, log)
	return c, nil
}

// Start connects the session and begins streaming. It returns once the
// connection is up and capture is running (or deliberately skipped); event
// dispatch continues in the background until the stream ends or Stop is
// called. Start can only be called once per Controller.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("live: controller already started")
	}
	c.started = true
	c.mu.Unlock()

	c.setStatus(StatusConnecting, "")

	if c.cred == "" {
		c.setStatus(StatusError, "API key missing")
		c.recordSessionError("credential")
		return ErrCredentialMissing
	}

	begin := time.Now()
	sess, err := c.provider.Connect(ctx, c.sessCfg)
	if err != nil {
		c.setStatus(StatusError, err.Error())
		c.recordSessionError("connect")
		return fmt.Errorf("live: connect: %w", err)
	}
	if c.metrics != nil {
		c.metrics.ConnectDuration.Record(ctx, time.Since(begin).Seconds())
	}

	done := make(chan struct{})
	c.mu.Lock()
	if c.stopped {
		// Stop won the race during the handshake. Close the fresh session
		// instead of leaking it and never start capture.
		c.mu.Unlock()
		if err := sess.Close(); err != nil {
			c.log.Warn("closing session", "error", err)
		}
		return nil
	}
	c.sess = sess
	c.dispatchDone = done
	c.capture = newCapture(c.mic, sess, c.log, c.metrics)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ActiveSessions.Add(ctx, 1)
	}

	c.setStatus(StatusConnected, "")

	if err := c.capture.start(); err != nil {
		// The stream stays open for receive: the model's speech still plays
		// even though we cannot hear the user.
		detail := err.Error()
		if errors.Is(err, audio.ErrPermission) {
			detail = "microphone access denied"
		}
		c.log.Warn("microphone unavailable, continuing without input", "error", err)
		c.setStatus(StatusError, detail)
		c.recordSessionError("capture")
	}

	go c.dispatch(sess, done)
	return nil
}

// dispatch consumes the session's event stream until it closes.
func (c *Controller) dispatch(sess providerlive.SessionHandle, done chan struct{}) {
	defer close(done)

	for ev := range sess.Events() {
		switch ev := ev.(type) {
		case providerlive.AudioChunk:
			chunk, err := audio.DecodePCM16(ev.Data, ev.SampleRate)
			if err != nil {
				// A malformed chunk costs a fraction of a second of speech,
				// not the session.
				c.log.Warn("skipping malformed audio chunk", "error", err)
				if c.metrics != nil {
					c.metrics.CodecErrors.Add(context.Background(), 1)
				}
				continue
			}
			if err := c.scheduler.Schedule(chunk); err != nil {
				c.log.Warn("scheduling audio chunk", "error", err)
				continue
			}
			if c.metrics != nil {
				c.metrics.ChunksScheduled.Add(context.Background(), 1)
			}

		case providerlive.Interrupted:
			c.scheduler.Interrupt()
			if c.metrics != nil {
				c.metrics.Interruptions.Add(context.Background(), 1)
			}

		case providerlive.TranscriptFragment:
			c.agg.Append(ev.Role, ev.Text)

		case providerlive.TurnComplete:
			for _, entry := range c.agg.Commit() {
				if c.metrics != nil {
					c.metrics.RecordTranscriptCommit(context.Background(), string(entry.Role))
				}
			}

		case providerlive.StreamError:
			c.log.Error("session stream failed", "error", ev.Err)
			c.setStatus(StatusError, errorDetail(ev.Err))
			c.recordSessionError("stream")
		}
	}

	// Stream over: whatever the cause, capture must not outlive it.
	if c.capture != nil {
		c.capture.stop()
	}
	if err := sess.Err(); err != nil {
		c.setStatus(StatusError, errorDetail(err))
		c.recordSessionError("stream")
	} else {
		c.setStatus(StatusDisconnected, "")
	}
	if c.metrics != nil {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

// Stop tears the session down: capture halts, the provider connection is
// closed best-effort, scheduled audio is flushed. Stop blocks until the
// dispatch loop has drained. Safe to call more than once and before Start.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	sess := c.sess
	done := c.dispatchDone
	capt := c.capture
	c.mu.Unlock()

	if capt != nil {
		capt.stop()
	}
	if sess != nil {
		if err := sess.Close(); err != nil {
			c.log.Warn("closing session", "error", err)
		}
	}
	c.scheduler.Interrupt()
	if done != nil {
		<-done
	}
	c.setStatus(StatusDisconnected, "")
}

// Status returns the current lifecycle state and its detail text.
func (c *Controller) Status() (Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.detail
}

// Transcript returns the committed conversation log so far.
func (c *Controller) Transcript() []transcript.Entry {
	return c.agg.Entries()
}

// setStatus advances the state machine. Terminal states are sticky: once in
// Error or Disconnected the controller never transitions again.
func (c *Controller) setStatus(st Status, detail string) {
	c.mu.Lock()
	if c.status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.status = st
	c.detail = detail
	cb := c.onStatus
	c.mu.Unlock()

	if cb != nil {
		cb(st, detail)
	}
}

// errorDetail renders err for a status callback. Error states always carry a
// human-readable message, so a nil or message-less error gets a generic one.
func errorDetail(err error) string {
	if err == nil || err.Error() == "" {
		return "connection to the live service failed"
	}
	return err.Error()
}

func (c *Controller) recordSessionError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordSessionError(context.Background(), kind)
	}
}
