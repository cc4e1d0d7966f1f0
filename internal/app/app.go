// Package app wires all Rehearsal subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, and Shutdown tears everything down in order. Sessions are
// driven through the [SessionManager] returned by Sessions.
//
// For testing, inject mock implementations via functional options
// (WithHistoryStore, WithMicrophone, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/rehearsal/internal/coach"
	"github.com/MrWong99/rehearsal/internal/config"
	"github.com/MrWong99/rehearsal/internal/health"
	"github.com/MrWong99/rehearsal/internal/history"
	historypg "github.com/MrWong99/rehearsal/internal/history/postgres"
	"github.com/MrWong99/rehearsal/internal/live"
	"github.com/MrWong99/rehearsal/internal/observe"
	"github.com/MrWong99/rehearsal/pkg/audio"
	"github.com/MrWong99/rehearsal/pkg/audio/miniaudio"
	providerlive "github.com/MrWong99/rehearsal/pkg/provider/live"
	"github.com/MrWong99/rehearsal/pkg/provider/llm"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured and the corresponding mode runs degraded
// (voice disabled, chat in demo mode). Populated by main.go via the
// config registry.
type Providers struct {
	Live providerlive.Provider
	Chat llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	store    history.Store
	dbPing   func(ctx context.Context) error
	coach    *coach.Coach
	sessions *SessionManager
	mic      audio.Microphone
	sink     audio.Sink
	metrics  *observe.Metrics
	onStatus live.StatusFunc
	log      *slog.Logger

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistoryStore injects a history store instead of creating one from config.
func WithHistoryStore(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMicrophone injects a capture device instead of opening the hardware one.
func WithMicrophone(m audio.Microphone) Option {
	return func(a *App) { a.mic = m }
}

// WithSink injects a playback device instead of opening the hardware one.
func WithSink(s audio.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithMetrics injects the metrics bundle. Defaults to no-op instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithStatusFunc forwards live session status transitions to fn.
func WithStatusFunc(fn live.StatusFunc) Option {
	return func(a *App) { a.onStatus = fn }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. History store ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 2. Coach ─────────────────────────────────────────────────────────
	a.coach = coach.New(providers.Chat,
		coach.WithLogger(a.log),
		coach.WithMetrics(a.metrics),
	)
	if a.coach.DemoMode() {
		a.log.Warn("no chat provider configured, coach runs in demo mode")
	}

	// ── 3. Audio devices ─────────────────────────────────────────────────
	a.initAudio()

	// ── 4. Session manager ───────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Live:       providers.Live,
		Credential: cfg.Live.APIKey,
		Model:      cfg.Live.Model,
		Microphone: a.mic,
		Sink:       a.sink,
		Coach:      a.coach,
		History:    a.store,
		OnStatus:   a.onStatus,
		Logger:     a.log,
		Metrics:    a.metrics,
	})

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initHistory sets up the PostgreSQL history store, falling back to the
// in-memory store when no DSN is configured.
func (a *App) initHistory(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.History.PostgresDSN
	if dsn == "" {
		a.log.Info("no postgres_dsn configured, session history is in-memory only")
		a.store = history.NewMemoryStore()
		return nil
	}

	store, err := historypg.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.dbPing = store.Ping
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initAudio opens the hardware capture and playback devices unless test
// doubles were injected. Device setup failure does not fail New: the app
// still serves text sessions, and voice session starts report the problem.
func (a *App) initAudio() {
	if a.mic != nil && a.sink != nil {
		return
	}

	actx, err := miniaudio.NewContext()
	if err != nil {
		a.log.Warn("audio device context unavailable, voice sessions disabled", "err", err)
		return
	}
	a.closers = append(a.closers, actx.Close)

	if a.mic == nil {
		a.mic = actx.Microphone()
	}
	if a.sink == nil {
		sink := actx.Sink()
		a.sink = sink
		a.closers = append(a.closers, sink.Close)
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Sessions returns the session manager driving voice and chat sessions.
func (a *App) Sessions() *SessionManager { return a.sessions }

// History returns the session history store.
func (a *App) History() history.Store { return a.store }

// Coach returns the text coach engine.
func (a *App) Coach() *coach.Coach { return a.coach }

// HealthCheckers returns the readiness checks for this deployment:
// database connectivity (when Postgres is configured) and chat provider
// presence. A demo-mode coach is reported as ready; it still serves.
func (a *App) HealthCheckers() []health.Checker {
	var checks []health.Checker
	if a.dbPing != nil {
		checks = append(checks, health.Checker{Name: "history", Check: a.dbPing})
	}
	checks = append(checks, health.Checker{
		Name: "live",
		Check: func(context.Context) error {
			if a.providers.Live == nil || a.cfg.Live.APIKey == "" {
				return fmt.Errorf("live provider not configured")
			}
			return nil
		},
	})
	return checks
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends any active session and tears down all subsystems in
// reverse-init order. It respects the context deadline: if ctx expires
// before all closers finish, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		if a.sessions != nil && a.sessions.IsActive() {
			if _, err := a.sessions.End(ctx); err != nil {
				a.log.Warn("ending active session", "err", err)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
