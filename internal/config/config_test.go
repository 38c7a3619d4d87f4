package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv ensures no ambient variables interfere with a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "VOXSH_MODEL",
		"VOXSH_TRANSCRIBER_URL", "VOXSH_MAX_ATTEMPTS", "VOXSH_DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("expected Model=gemini-2.5-flash, got %s", cfg.LLM.Model)
	}
	if cfg.Resolver.MaxAttempts != 10 {
		t.Errorf("expected MaxAttempts=10, got %d", cfg.Resolver.MaxAttempts)
	}
	if cfg.Speech.SampleRate != 16000 {
		t.Errorf("expected SampleRate=16000, got %d", cfg.Speech.SampleRate)
	}
	if cfg.GetListenTimeout() != 10*time.Second {
		t.Errorf("expected listen timeout 10s, got %v", cfg.GetListenTimeout())
	}
	if cfg.GetLLMTimeout() != 0 || cfg.GetExecutionTimeout() != 0 {
		t.Error("oracle and execution timeouts should default to none")
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	path := filepath.Join("/home/u/.config/voxsh", "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "k-test"
	cfg.LLM.Platform = "macOS"
	cfg.Resolver.MaxAttempts = 3

	require.NoError(t, cfg.Save(fs, path))

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	loaded, err := Load(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "k-test", loaded.LLM.APIKey)
	assert.Equal(t, "macOS", loaded.LLM.Platform)
	assert.Equal(t, 3, loaded.Resolver.MaxAttempts)

	entries, err := afero.ReadDir(fs, filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should not be left behind")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(afero.NewMemMapFs(), "/nope/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte("llm:\n  api_key: abc\n"), 0o600))

	cfg, err := Load(fs, "/c.yaml")
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, "ws://localhost:2700", cfg.Speech.TranscriberURL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte("llm: [unclosed"), 0o600))

	_, err := Load(fs, "/c.yaml")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		voice   bool
		wantErr string
	}{
		{"valid", func(c *Config) {}, true, ""},
		{"missing key", func(c *Config) { c.LLM.APIKey = " " }, false, "API key not configured"},
		{"placeholder key", func(c *Config) { c.LLM.APIKey = PlaceholderAPIKey }, false, "placeholder"},
		{"zero attempts", func(c *Config) { c.Resolver.MaxAttempts = 0 }, false, "max_attempts"},
		{"bad duration", func(c *Config) { c.Execution.Timeout = "soon" }, false, "execution.timeout"},
		{"text mode ignores transcriber", func(c *Config) { c.Speech.TranscriberURL = "" }, false, ""},
		{"voice needs transcriber", func(c *Config) { c.Speech.TranscriberURL = "" }, true, "transcriber"},
		{"voice needs sample rate", func(c *Config) { c.Speech.SampleRate = 0 }, true, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LLM.APIKey = "k"
			tt.mutate(cfg)
			err := cfg.Validate(tt.voice)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationGetters_FallBackOnInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Speech.SilenceGrace = "bogus"
	cfg.Speech.FrameWait = "250ms"
	cfg.LLM.Timeout = "30s"

	assert.Equal(t, 2*time.Second, cfg.GetSilenceGrace())
	assert.Equal(t, 250*time.Millisecond, cfg.GetFrameWait())
	assert.Equal(t, 30*time.Second, cfg.GetLLMTimeout())
}

func TestLoggingConfig_ToLoggingSettings(t *testing.T) {
	lc := LoggingConfig{DebugMode: true, Categories: map[string]bool{"api": false}, Level: "debug", Format: "json"}
	debug, categories, level, jsonFormat := lc.ToLoggingSettings()
	assert.True(t, debug)
	assert.Equal(t, map[string]bool{"api": false}, categories)
	assert.Equal(t, "debug", level)
	assert.True(t, jsonFormat)

	lc.Format = "text"
	_, _, _, jsonFormat = lc.ToLoggingSettings()
	assert.False(t, jsonFormat)
}

func TestGetStateDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.StateDir = "/var/tmp/voxsh"
	assert.Equal(t, "/var/tmp/voxsh", cfg.GetStateDir())

	t.Setenv("XDG_STATE_HOME", "/xdg")
	cfg.Logging.StateDir = ""
	assert.Equal(t, filepath.Join("/xdg", "voxsh"), cfg.GetStateDir())
}
