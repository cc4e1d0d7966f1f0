package config_test

import (
	"testing"

	"github.com/MrWong99/rehearsal/internal/config"
	"github.com/MrWong99/rehearsal/internal/scenario"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Chat:   config.ProviderEntry{Name: "gemini", Model: "gemini-2.5-flash"},
		Defaults: config.DefaultsConfig{
			Language:  scenario.LanguageEN,
			Framework: scenario.FrameworkGROW,
		},
	}
	d := config.Diff(cfg, cfg)
	if d.Any() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.DefaultsChanged || d.ChatModelChanged {
		t.Errorf("expected only log level to change, got %+v", d)
	}
}

func TestDiff_DefaultsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Defaults: config.DefaultsConfig{
			Language:  scenario.LanguageEN,
			Framework: scenario.FrameworkGROW,
		},
	}
	new := &config.Config{
		Defaults: config.DefaultsConfig{
			Language:  scenario.LanguageTH,
			Framework: scenario.FrameworkGROW,
		},
	}

	d := config.Diff(old, new)
	if !d.DefaultsChanged {
		t.Error("expected DefaultsChanged=true")
	}
	if d.NewDefaults.Language != scenario.LanguageTH {
		t.Errorf("expected NewDefaults.Language=TH, got %q", d.NewDefaults.Language)
	}
}

func TestDiff_ChatModelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Chat: config.ProviderEntry{Name: "gemini", Model: "gemini-2.5-flash"}}
	new := &config.Config{Chat: config.ProviderEntry{Name: "gemini", Model: "gemini-2.5-pro"}}

	d := config.Diff(old, new)
	if !d.ChatModelChanged {
		t.Error("expected ChatModelChanged=true")
	}
	if d.NewChatModel != "gemini-2.5-pro" {
		t.Errorf("expected NewChatModel=gemini-2.5-pro, got %q", d.NewChatModel)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Chat:   config.ProviderEntry{Model: "gemini-2.5-flash"},
		Defaults: config.DefaultsConfig{
			Language:  scenario.LanguageEN,
			Framework: scenario.FrameworkGROW,
		},
	}
	new := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogWarn},
		Chat:   config.ProviderEntry{Model: "gemini-2.5-pro"},
		Defaults: config.DefaultsConfig{
			Language:  scenario.LanguageCN,
			Framework: scenario.FrameworkOSKAR,
		},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged || !d.DefaultsChanged || !d.ChatModelChanged {
		t.Errorf("expected all fields changed, got %+v", d)
	}
	if !d.Any() {
		t.Error("expected Any()=true")
	}
}

func TestDiff_AnyOnZeroValue(t *testing.T) {
	t.Parallel()
	var d config.ConfigDiff
	if d.Any() {
		t.Error("expected Any()=false on zero value")
	}
}
