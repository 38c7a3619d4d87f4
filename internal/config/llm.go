package config

import "time"

// PlaceholderAPIKey is the value shipped in example configs. Treated as unset.
const PlaceholderAPIKey = "YOUR_GEMINI_API_KEY_HERE"

// LLMConfig configures the command oracle.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`

	// Timeout bounds each oracle call. Empty means no timeout.
	Timeout string `yaml:"timeout,omitempty"`

	MaxOutputTokens int32 `yaml:"max_output_tokens"`

	// Platform is named in the instruction templates ("Linux", "macOS").
	Platform string `yaml:"platform"`
}

// GetLLMTimeout returns the oracle timeout; zero means none.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 0)
}
