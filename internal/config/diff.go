package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// credential changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DefaultsChanged is true when the default scenario values changed.
	// Applies only to sessions started afterwards.
	DefaultsChanged bool
	NewDefaults     DefaultsConfig

	// ChatModelChanged is true when the text chat model changed.
	// Applies only to requests issued afterwards.
	ChatModelChanged bool
	NewChatModel     string
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.DefaultsChanged || d.ChatModelChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Defaults != new.Defaults {
		d.DefaultsChanged = true
		d.NewDefaults = new.Defaults
	}

	if old.Chat.Model != new.Chat.Model {
		d.ChatModelChanged = true
		d.NewChatModel = new.Chat.Model
	}

	return d
}
