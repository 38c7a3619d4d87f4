package config

import "time"

// ExecutionConfig configures the shell executor.
type ExecutionConfig struct {
	WorkingDirectory string `yaml:"working_directory,omitempty"`

	// Timeout bounds each command. Empty means no timeout.
	Timeout string `yaml:"timeout,omitempty"`

	MaxOutputBytes     int64    `yaml:"max_output_bytes"`
	InheritEnvironment bool     `yaml:"inherit_environment"`
	AllowedEnvVars     []string `yaml:"allowed_env_vars"`
}

// GetExecutionTimeout returns the command timeout; zero means none.
func (c *Config) GetExecutionTimeout() time.Duration {
	return parseDuration(c.Execution.Timeout, 0)
}
