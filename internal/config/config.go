package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config holds all voxsh configuration.
type Config struct {
	// LLM configuration (the command oracle)
	LLM LLMConfig `yaml:"llm"`

	// Speech capture and transcription
	Speech SpeechConfig `yaml:"speech"`

	// Shell execution
	Execution ExecutionConfig `yaml:"execution"`

	// Repair loop
	Resolver ResolverConfig `yaml:"resolver"`

	// Metrics endpoint
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ResolverConfig configures the repair loop.
type ResolverConfig struct {
	MaxAttempts int  `yaml:"max_attempts"`
	AutoAccept  bool `yaml:"auto_accept"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:9464". Empty disables it.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:           "gemini-2.5-flash",
			Platform:        "Linux",
			MaxOutputTokens: 1024,
		},

		Speech: SpeechConfig{
			TranscriberURL: "ws://localhost:2700",
			CaptureBinary:  "arecord",
			SampleRate:     16000,
			Timeout:        "10s",
			SilenceGrace:   "2s",
			FrameWait:      "1s",
			QueueCapacity:  64,
		},

		Execution: ExecutionConfig{
			InheritEnvironment: true,
			MaxOutputBytes:     10 * 1024 * 1024,
			AllowedEnvVars:     []string{"PATH", "HOME", "USER", "SHELL", "LANG", "LC_ALL", "TERM"},
		},

		Resolver: ResolverConfig{
			MaxAttempts: 10,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.config/voxsh/config.yaml (or the platform equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".voxsh", "config.yaml")
	}
	return filepath.Join(dir, "voxsh", "config.yaml")
}

// DefaultStateDir returns the directory for logs and other runtime state.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "voxsh")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voxsh"
	}
	return filepath.Join(home, ".local", "state", "voxsh")
}

// Load loads configuration from a YAML file on fs. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to path on fs atomically (temp file + rename).
func (c *Config) Save(fs afero.Fs, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := afero.TempFile(fs, dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer fs.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	// The file holds an API key.
	if err := fs.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("failed to chmod config: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	// GEMINI_API_KEY wins over GOOGLE_API_KEY.
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("VOXSH_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("VOXSH_TRANSCRIBER_URL"); url != "" {
		c.Speech.TranscriberURL = url
	}
	if v := os.Getenv("VOXSH_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VOXSH_MAX_ATTEMPTS: %w", err)
		}
		c.Resolver.MaxAttempts = n
	}
	if v := os.Getenv("VOXSH_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VOXSH_DEBUG: %w", err)
		}
		c.Logging.DebugMode = debug
	}
	return nil
}

// Validate checks the configuration. voice additionally requires a
// transcriber location.
func (c *Config) Validate(voice bool) error {
	key := strings.TrimSpace(c.LLM.APIKey)
	if key == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or llm.api_key)")
	}
	if key == PlaceholderAPIKey {
		return fmt.Errorf("LLM API key is still the placeholder %q (set GEMINI_API_KEY)", PlaceholderAPIKey)
	}
	if c.Resolver.MaxAttempts < 1 {
		return fmt.Errorf("resolver.max_attempts must be at least 1, got %d", c.Resolver.MaxAttempts)
	}
	for name, v := range map[string]string{
		"llm.timeout":          c.LLM.Timeout,
		"execution.timeout":    c.Execution.Timeout,
		"speech.timeout":       c.Speech.Timeout,
		"speech.silence_grace": c.Speech.SilenceGrace,
		"speech.frame_wait":    c.Speech.FrameWait,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if voice {
		if strings.TrimSpace(c.Speech.TranscriberURL) == "" {
			return fmt.Errorf("transcriber location not configured (set VOXSH_TRANSCRIBER_URL or speech.transcriber_url)")
		}
		if c.Speech.SampleRate <= 0 {
			return fmt.Errorf("speech.sample_rate must be positive, got %d", c.Speech.SampleRate)
		}
	}
	return nil
}

// parseDuration returns def when s is empty or invalid.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
