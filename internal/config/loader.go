package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"live": {"gemini-live"},
	"chat": {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path, applies environment
// fallbacks, and returns a validated [Config]. It is a convenience wrapper
// around [LoadFromReader], [ApplyEnv], and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
// Environment fallbacks are NOT applied; call [ApplyEnv] separately.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode parses YAML from r, rejecting unknown fields. An empty document
// yields a zero-value config.
func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv fills credentials and connection strings left empty in the file
// from environment variables:
//
//   - live.api_key and chat.api_key fall back to GEMINI_API_KEY, then GOOGLE_API_KEY
//   - history.postgres_dsn falls back to REHEARSAL_POSTGRES_DSN
func ApplyEnv(cfg *Config) {
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.Live.APIKey == "" {
		cfg.Live.APIKey = geminiKey
	}
	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = geminiKey
	}
	if cfg.History.PostgresDSN == "" {
		cfg.History.PostgresDSN = os.Getenv("REHEARSAL_POSTGRES_DSN")
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Provider name validation, warns for unknown names.
	validateProviderName("live", cfg.Live.Name)
	validateProviderName("chat", cfg.Chat.Name)
	for i, fb := range cfg.ChatFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("chat_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("chat", fb.Name)
	}

	// Credential availability warnings
	if cfg.Live.APIKey == "" {
		slog.Warn("live.api_key is empty; voice sessions will fail to start unless GEMINI_API_KEY is set")
	}
	if cfg.Chat.APIKey == "" {
		slog.Warn("chat.api_key is empty; text sessions will run in demo mode with canned replies")
	}

	// History availability
	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; session history will be kept in memory only")
	}

	// Scenario defaults
	if cfg.Defaults.Language != "" && !cfg.Defaults.Language.IsValid() {
		errs = append(errs, fmt.Errorf("defaults.language %q is invalid; valid values: EN, TH, CN", cfg.Defaults.Language))
	}
	if cfg.Defaults.Framework != "" && !cfg.Defaults.Framework.IsValid() {
		errs = append(errs, fmt.Errorf("defaults.framework %q is invalid; valid values: GROW Model, OSKAR Model, CLEAR Model, Free Flow / General", cfg.Defaults.Framework))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
