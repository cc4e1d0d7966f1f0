// Command rehearsal is the main entry point for the Rehearsal coaching
// role-play server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/rehearsal/internal/app"
	"github.com/MrWong99/rehearsal/internal/config"
	"github.com/MrWong99/rehearsal/internal/health"
	"github.com/MrWong99/rehearsal/internal/observe"
	"github.com/MrWong99/rehearsal/internal/resilience"
	providerlive "github.com/MrWong99/rehearsal/pkg/provider/live"
	geminilive "github.com/MrWong99/rehearsal/pkg/provider/live/gemini"
	"github.com/MrWong99/rehearsal/pkg/provider/llm"
	"github.com/MrWong99/rehearsal/pkg/provider/llm/anyllm"
	openaillm "github.com/MrWong99/rehearsal/pkg/provider/llm/openai"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

// logLevel is shared with the config watcher so log level changes apply
// without a restart.
var logLevel slog.LevelVar

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "rehearsal: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "rehearsal: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("rehearsal starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "rehearsal",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithLogger(logger),
		app.WithMetrics(metrics),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, onConfigChange)
	if err != nil {
		slog.Warn("config watcher unavailable, hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server: health + metrics ─────────────────────────────────────────
	hh := health.New(application.HealthCheckers()...)
	hh.Version = version

	mux := http.NewServeMux()
	hh.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr, "tls", cfg.Server.TLS != nil)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("http server error", "err", err)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Live voice ────────────────────────────────────────────────────────────

	reg.RegisterLive("gemini-live", func(entry config.ProviderEntry) (providerlive.Provider, error) {
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})

	// ── Chat ──────────────────────────────────────────────────────────────────
	// openai uses the vendor SDK directly; the rest go through any-llm.

	reg.RegisterChat("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaillm.WithBaseURL(entry.BaseURL))
		}
		return openaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"gemini", "anthropic", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterChat(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Live.Name; name != "" {
		p, err := reg.CreateLive(cfg.Live)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown live provider — voice sessions disabled", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create live provider %q: %w", name, err)
		} else {
			ps.Live = p
			slog.Info("provider created", "kind", "live", "name", name)
		}
	}

	if name := cfg.Chat.Name; name != "" {
		p, err := reg.CreateChat(cfg.Chat)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown chat provider — coach runs in demo mode", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create chat provider %q: %w", name, err)
		} else {
			ps.Chat = p
			slog.Info("provider created", "kind", "chat", "name", name)
		}
	}

	if ps.Chat != nil && len(cfg.ChatFallbacks) > 0 {
		ps.Chat = wrapChatFallbacks(ps.Chat, cfg, reg)
	}

	return ps, nil
}

// wrapChatFallbacks wraps the primary chat provider in a circuit-breaking
// fallback group and registers every usable chat_fallbacks entry behind it.
func wrapChatFallbacks(primary llm.Provider, cfg *config.Config, reg *config.Registry) llm.Provider {
	group := resilience.NewLLMFallback(primary, cfg.Chat.Name, resilience.FallbackConfig{})
	registered := 0
	for _, entry := range cfg.ChatFallbacks {
		p, err := reg.CreateChat(entry)
		if err != nil {
			slog.Warn("skipping chat fallback", "name", entry.Name, "err", err)
			continue
		}
		group.AddFallback(entry.Name, p)
		registered++
		slog.Info("provider created", "kind", "chat-fallback", "name", entry.Name)
	}
	if registered == 0 {
		return primary
	}
	return group
}

// onConfigChange applies hot-reloadable settings from a changed config file.
// Only the log level takes effect immediately; provider and default changes
// apply to the next session or require a restart.
func onConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DefaultsChanged {
		slog.Info("scenario defaults changed",
			"language", d.NewDefaults.Language,
			"framework", d.NewDefaults.Framework,
		)
	}
	if d.ChatModelChanged {
		slog.Warn("chat model changed in config — restart to apply", "model", d.NewChatModel)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Rehearsal — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Live", cfg.Live.Name, cfg.Live.Model)
	printProvider("Chat", cfg.Chat.Name, cfg.Chat.Model)
	historyBackend := "in-memory"
	if cfg.History.PostgresDSN != "" {
		historyBackend = "postgres"
	}
	fmt.Printf("║  History         : %-19s ║\n", historyBackend)
	if cfg.Defaults.Language != "" {
		fmt.Printf("║  Language        : %-19s ║\n", cfg.Defaults.Language)
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	logLevel.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
