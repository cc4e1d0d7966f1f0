package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/rehearsal/internal/coach"
	"github.com/MrWong99/rehearsal/internal/history"
	"github.com/MrWong99/rehearsal/internal/live"
	"github.com/MrWong99/rehearsal/internal/observe"
	"github.com/MrWong99/rehearsal/internal/scenario"
	"github.com/MrWong99/rehearsal/pkg/audio"
	providerlive "github.com/MrWong99/rehearsal/pkg/provider/live"
	"github.com/MrWong99/rehearsal/pkg/transcript"
)

// ErrSessionActive is returned by Start when a session is already running.
var ErrSessionActive = errors.New("app: a session is already active")

// ErrNoSession is returned by operations that require an active session.
var ErrNoSession = errors.New("app: no active session")

// SessionInfo holds metadata about an active session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session. It doubles as
	// the history record ID once the session ends.
	SessionID string

	// UserID identifies who started the session.
	UserID string

	// Scenario is the role-play configuration the session runs with.
	Scenario scenario.Scenario

	// StartedAt is when the session was started.
	StartedAt time.Time
}

// SessionManager manages the lifecycle of role-play sessions.
// Only one session can be active at a time: a voice session owns the
// microphone and speaker exclusively, and a chat session represents the
// same single conversation surface. All exported methods are safe for
// concurrent use.
//
// A failed voice session is never restarted; Start always builds a fresh
// [live.Controller], so retry after an error is just Start again.
type SessionManager struct {
	mu         sync.Mutex
	active     bool
	info       SessionInfo
	controller *live.Controller   // voice sessions only
	chatLog    []transcript.Entry // text sessions only

	// Dependencies injected at construction.
	liveProvider providerlive.Provider
	credential   string
	model        string
	mic          audio.Microphone
	sink         audio.Sink
	coach        *coach.Coach
	store        history.Store
	onStatus     live.StatusFunc
	log          *slog.Logger
	metrics      *observe.Metrics
	now          func() time.Time
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	// Live opens realtime voice sessions. Nil disables voice mode.
	Live providerlive.Provider

	// Credential is the live provider API key, checked by the controller
	// before any dial.
	Credential string

	// Model overrides the live provider's default model when non-empty.
	Model string

	// Microphone and Sink are the audio devices voice sessions run on.
	// Nil disables voice mode.
	Microphone audio.Microphone
	Sink       audio.Sink

	// Coach generates chat replies and evaluations. Required.
	Coach *coach.Coach

	// History persists ended sessions. Nil means sessions are not saved.
	History history.Store

	// OnStatus receives live session lifecycle transitions. Optional.
	OnStatus live.StatusFunc

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics defaults to no recording when nil.
	Metrics *observe.Metrics
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &SessionManager{
		liveProvider: cfg.Live,
		credential:   cfg.Credential,
		model:        cfg.Model,
		mic:          cfg.Microphone,
		sink:         cfg.Sink,
		coach:        cfg.Coach,
		store:        cfg.History,
		onStatus:     cfg.OnStatus,
		log:          log,
		metrics:      cfg.Metrics,
		now:          time.Now,
	}
}

// Start begins a new session for the given scenario. Voice scenarios
// connect a fresh live controller; text scenarios open a chat log seeded
// with the counterpart's scripted greeting.
//
// Returns [ErrSessionActive] if a session is already running.
func (sm *SessionManager) Start(ctx context.Context, userID string, sc scenario.Scenario) (SessionInfo, error) {
	if err := sc.Validate(); err != nil {
		return SessionInfo{}, fmt.Errorf("app: start session: %w", err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.active {
		return SessionInfo{}, fmt.Errorf("%w (id=%s)", ErrSessionActive, sm.info.SessionID)
	}

	now := sm.now().UTC()
	sessionID := fmt.Sprintf("session-%s-%s-%s",
		strings.ToLower(string(sc.Mode)),
		now.Format("20060102T150405Z"),
		uuid.NewString()[:8],
	)

	switch sc.Mode {
	case scenario.ModeVoice:
		ctrl, err := sm.startVoice(ctx, sc)
		if err != nil {
			return SessionInfo{}, err
		}
		sm.controller = ctrl
		sm.chatLog = nil

	case scenario.ModeText:
		// The counterpart always opens the conversation; the scripted
		// greeting keeps the opening consistent across sessions.
		sm.controller = nil
		sm.chatLog = []transcript.Entry{{
			ID:        uuid.NewString(),
			Role:      transcript.RoleModel,
			Text:      sc.Greeting(),
			Timestamp: now,
		}}
	}

	sm.active = true
	sm.info = SessionInfo{
		SessionID: sessionID,
		UserID:    userID,
		Scenario:  sc,
		StartedAt: now,
	}

	sm.log.Info("session started",
		"session_id", sessionID,
		"user_id", userID,
		"mode", sc.Mode,
		"role", sc.UserRole,
		"language", sc.Language,
	)

	return sm.info, nil
}

// startVoice builds and connects a fresh live controller for sc.
func (sm *SessionManager) startVoice(ctx context.Context, sc scenario.Scenario) (*live.Controller, error) {
	voice, _ := sc.Voice()
	ctrl, err := live.NewController(live.Config{
		Provider:   sm.liveProvider,
		Microphone: sm.mic,
		Sink:       sm.sink,
		Credential: sm.credential,
		Session: providerlive.SessionConfig{
			Model:               sm.model,
			Voice:               voice,
			Instructions:        sc.LiveInstructions(),
			InputTranscription:  true,
			OutputTranscription: true,
		},
		OnStatus: sm.onStatus,
		Logger:   sm.log,
		Metrics:  sm.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: build live controller: %w", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		return nil, fmt.Errorf("app: start live session: %w", err)
	}
	return ctrl, nil
}

// SendText appends the user's message to the chat log and returns the
// counterpart's reply. Only valid for an active text session.
func (sm *SessionManager) SendText(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("app: send text: message must not be empty")
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.active {
		return "", ErrNoSession
	}
	if sm.info.Scenario.Mode != scenario.ModeText {
		return "", fmt.Errorf("app: send text: session is not a text session")
	}

	sm.chatLog = append(sm.chatLog, transcript.Entry{
		ID:        uuid.NewString(),
		Role:      transcript.RoleUser,
		Text:      text,
		Timestamp: sm.now().UTC(),
	})

	reply, err := sm.coach.Reply(ctx, sm.info.Scenario, sm.chatLog)
	if err != nil {
		return "", fmt.Errorf("app: send text: %w", err)
	}

	sm.chatLog = append(sm.chatLog, transcript.Entry{
		ID:        uuid.NewString(),
		Role:      transcript.RoleModel,
		Text:      reply,
		Timestamp: sm.now().UTC(),
	})
	return reply, nil
}

// Transcript returns the conversation log of the active session. For voice
// sessions this is the committed live transcript; for text sessions the
// chat log. Returns nil when no session is active.
func (sm *SessionManager) Transcript() []transcript.Entry {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.active {
		return nil
	}
	if sm.controller != nil {
		return sm.controller.Transcript()
	}
	out := make([]transcript.Entry, len(sm.chatLog))
	copy(out, sm.chatLog)
	return out
}

// Status returns the live connection state of the active session. Text
// sessions report connected; an inactive manager reports idle.
func (sm *SessionManager) Status() (live.Status, string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.active {
		return live.StatusIdle, ""
	}
	if sm.controller != nil {
		return sm.controller.Status()
	}
	return live.StatusConnected, ""
}

// End stops the active session, assembles its history record, and saves it
// when a store is configured. The record is returned even when saving
// fails, so the caller can still evaluate and display the conversation.
//
// Returns [ErrNoSession] if no session is active.
func (sm *SessionManager) End(ctx context.Context) (history.Record, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.active {
		return history.Record{}, ErrNoSession
	}

	var entries []transcript.Entry
	if sm.controller != nil {
		sm.controller.Stop()
		entries = sm.controller.Transcript()
	} else {
		entries = sm.chatLog
	}

	rec := history.Record{
		ID:              sm.info.SessionID,
		UserID:          sm.info.UserID,
		Timestamp:       sm.info.StartedAt,
		DurationSeconds: int(sm.now().UTC().Sub(sm.info.StartedAt).Seconds()),
		Scenario:        sm.info.Scenario,
		Entries:         entries,
	}

	sessionID := sm.info.SessionID
	sm.active = false
	sm.controller = nil
	sm.chatLog = nil
	sm.info = SessionInfo{}

	sm.log.Info("session ended",
		"session_id", sessionID,
		"duration_s", rec.DurationSeconds,
		"entries", len(rec.Entries),
	)

	if sm.store != nil {
		if err := sm.store.Save(ctx, rec); err != nil {
			return rec, fmt.Errorf("app: save session: %w", err)
		}
	}
	return rec, nil
}

// Evaluate runs the performance evaluation for a stored session and
// attaches the result to its history record. The evaluation itself never
// fails; only loading or re-saving the record can.
func (sm *SessionManager) Evaluate(ctx context.Context, sessionID string) (*coach.Evaluation, error) {
	if sm.store == nil {
		return nil, fmt.Errorf("app: evaluate: no history store configured")
	}

	rec, err := sm.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("app: evaluate: %w", err)
	}

	eval := sm.coach.Evaluate(ctx, rec.Scenario, rec.Entries)
	rec.Evaluation = eval
	if err := sm.store.Save(ctx, rec); err != nil {
		return eval, fmt.Errorf("app: evaluate: save record: %w", err)
	}
	return eval, nil
}

// IsActive reports whether a session is currently running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.active
}

// Info returns metadata about the active session.
// Returns zero value if no session is active.
func (sm *SessionManager) Info() SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.info
}
