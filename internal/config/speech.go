package config

import "time"

// SpeechConfig configures capture and transcription.
type SpeechConfig struct {
	// TranscriberURL is the vosk-server websocket endpoint.
	TranscriberURL string `yaml:"transcriber_url"`

	CaptureBinary string `yaml:"capture_binary"`
	Device        string `yaml:"device,omitempty"`
	SampleRate    int    `yaml:"sample_rate"`

	Timeout       string `yaml:"timeout"`
	SilenceGrace  string `yaml:"silence_grace"`
	FrameWait     string `yaml:"frame_wait"`
	QueueCapacity int    `yaml:"queue_capacity"`
}

// GetListenTimeout returns the absolute listening timeout.
func (c *Config) GetListenTimeout() time.Duration {
	return parseDuration(c.Speech.Timeout, 10*time.Second)
}

// GetSilenceGrace returns the silence period before the paused signal.
func (c *Config) GetSilenceGrace() time.Duration {
	return parseDuration(c.Speech.SilenceGrace, 2*time.Second)
}

// GetFrameWait returns how long to wait for a frame before signalling.
func (c *Config) GetFrameWait() time.Duration {
	return parseDuration(c.Speech.FrameWait, time.Second)
}

// GetQueueCapacity returns the frame queue capacity, or zero for the default.
func (c *Config) GetQueueCapacity() int {
	if c.Speech.QueueCapacity < 0 {
		return 0
	}
	return c.Speech.QueueCapacity
}
