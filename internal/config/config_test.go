package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/rehearsal/internal/config"
	"github.com/MrWong99/rehearsal/internal/scenario"
	"github.com/MrWong99/rehearsal/pkg/provider/llm"
	providerlive "github.com/MrWong99/rehearsal/pkg/provider/live"
	mocklive "github.com/MrWong99/rehearsal/pkg/provider/live/mock"
	mockllm "github.com/MrWong99/rehearsal/pkg/provider/llm/mock"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
live:
  name: gemini-live
  api_key: test-key
  model: gemini-2.5-flash-native-audio-preview-09-2025
chat:
  name: gemini
  api_key: test-key
  model: gemini-2.5-flash
history:
  postgres_dsn: "postgres://localhost/rehearsal"
defaults:
  language: EN
  framework: GROW Model
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Live.Name != "gemini-live" || cfg.Live.Model != "gemini-2.5-flash-native-audio-preview-09-2025" {
		t.Errorf("live entry: %+v", cfg.Live)
	}
	if cfg.Chat.Name != "gemini" || cfg.Chat.APIKey != "test-key" {
		t.Errorf("chat entry: %+v", cfg.Chat)
	}
	if cfg.History.PostgresDSN != "postgres://localhost/rehearsal" {
		t.Errorf("postgres_dsn: got %q", cfg.History.PostgresDSN)
	}
	if cfg.Defaults.Language != scenario.LanguageEN || cfg.Defaults.Framework != scenario.FrameworkGROW {
		t.Errorf("defaults: %+v", cfg.Defaults)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config for empty input")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_adr: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/rehearsal/tls.crt
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing key_file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_InvalidDefaultsLanguage(t *testing.T) {
	t.Parallel()
	yaml := `
defaults:
  language: DE
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid language, got nil")
	}
	if !strings.Contains(err.Error(), "defaults.language") {
		t.Errorf("error should mention defaults.language, got: %v", err)
	}
}

func TestValidate_InvalidDefaultsFramework(t *testing.T) {
	t.Parallel()
	yaml := `
defaults:
  framework: SCRUM
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid framework, got nil")
	}
	if !strings.Contains(err.Error(), "defaults.framework") {
		t.Errorf("error should mention defaults.framework, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
defaults:
  language: DE
  framework: SCRUM
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined errors, got nil")
	}
	for _, want := range []string{"log_level", "defaults.language", "defaults.framework"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestApplyEnv_FillsEmptyFields(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("REHEARSAL_POSTGRES_DSN", "postgres://env/rehearsal")

	cfg := &config.Config{}
	config.ApplyEnv(cfg)

	if cfg.Live.APIKey != "env-key" || cfg.Chat.APIKey != "env-key" {
		t.Errorf("expected env api key, got live=%q chat=%q", cfg.Live.APIKey, cfg.Chat.APIKey)
	}
	if cfg.History.PostgresDSN != "postgres://env/rehearsal" {
		t.Errorf("expected env dsn, got %q", cfg.History.PostgresDSN)
	}
}

func TestApplyEnv_KeepsExplicitValues(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg := &config.Config{}
	cfg.Live.APIKey = "file-key"
	config.ApplyEnv(cfg)

	if cfg.Live.APIKey != "file-key" {
		t.Errorf("expected file value to win, got %q", cfg.Live.APIKey)
	}
	if cfg.Chat.APIKey != "env-key" {
		t.Errorf("expected env fallback for chat, got %q", cfg.Chat.APIKey)
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_UnknownLive(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateLive(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_UnknownChat(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateChat(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_RegisteredLive(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	want := &mocklive.Provider{}
	r.RegisterLive("gemini-live", func(entry config.ProviderEntry) (providerlive.Provider, error) {
		return want, nil
	})

	got, err := r.CreateLive(config.ProviderEntry{Name: "gemini-live"})
	if err != nil {
		t.Fatalf("CreateLive: %v", err)
	}
	if got != want {
		t.Error("expected the registered provider instance")
	}
}

func TestRegistry_RegisteredChat(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	want := &mockllm.Provider{}
	r.RegisterChat("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		return want, nil
	})

	got, err := r.CreateChat(config.ProviderEntry{Name: "gemini"})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if got != want {
		t.Error("expected the registered provider instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	wantErr := errors.New("bad credentials")
	r.RegisterChat("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})

	_, err := r.CreateChat(config.ProviderEntry{Name: "gemini"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error, got %v", err)
	}
}
