package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, text
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"` // Master toggle - false = no file logging
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // Per-category toggles
	StateDir   string          `yaml:"state_dir,omitempty" json:"state_dir,omitempty"`
}

// GetStateDir returns the configured state directory or the default.
func (c *Config) GetStateDir() string {
	if c.Logging.StateDir != "" {
		return c.Logging.StateDir
	}
	return DefaultStateDir()
}

// ToLoggingSettings converts the logging section to logging.Settings fields.
// Returned as plain values so this package does not import logging.
func (c *LoggingConfig) ToLoggingSettings() (debugMode bool, categories map[string]bool, level string, jsonFormat bool) {
	return c.DebugMode, c.Categories, c.Level, c.Format == "json"
}
