// Package config provides the configuration schema, loader, and provider
// registry for quizhost.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Default values applied by [Default] and by [LoadFromReader] for keys the
// file leaves out.
const (
	DefaultInputSampleRate   = 16000
	DefaultOutputSampleRate  = 24000
	DefaultFrameSize         = 4096
	DefaultInitialGain       = 2.5
	DefaultSummaryGain       = 2.0
	DefaultFactCheckMinChars = 50
	DefaultFactCheckTimeout  = 30 * time.Second
	MaxGain                  = 4.0
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
	Game      GameConfig      `yaml:"game"`
}

// ServerConfig holds logging and debug endpoint settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address of the debug server exposing /metrics
	// and /status (e.g., "127.0.0.1:9464"). Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ProvidersConfig declares which implementation backs each external
// service. Each Name is looked up in the [Registry].
type ProvidersConfig struct {
	S2S       ProviderEntry `yaml:"s2s"`
	TTS       ProviderEntry `yaml:"tts"`
	FactCheck ProviderEntry `yaml:"factcheck"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "gemini-live").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider. When empty it is filled from
	// the environment by [ApplyEnv].
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Voice overrides the provider's default prebuilt voice, where the
	// provider speaks with a fixed voice.
	Voice string `yaml:"voice"`
}

// AudioConfig holds the capture and playback parameters.
type AudioConfig struct {
	// InputSampleRate is the rate sent to the live channel.
	InputSampleRate int `yaml:"input_sample_rate"`

	// OutputSampleRate is the rate of the model's synthesised speech.
	OutputSampleRate int `yaml:"output_sample_rate"`

	// FrameSize is the number of samples per outbound chunk.
	FrameSize int `yaml:"frame_size"`

	// InitialGain is the live playback volume at session start, in [0, 4].
	InitialGain float64 `yaml:"initial_gain"`

	// SummaryGain is the fixed volume of the end-of-game narration.
	SummaryGain float64 `yaml:"summary_gain"`

	// SpeakerBufferMS is the output device buffer. Zero uses the backend
	// default.
	SpeakerBufferMS int `yaml:"speaker_buffer_ms"`
}

// GameConfig holds gameplay settings.
type GameConfig struct {
	// Host is the personality ID (see internal/host).
	Host string `yaml:"host"`

	// FactCheckMinChars is the host turn length, in characters, that must
	// be exceeded before the turn is fact-checked.
	FactCheckMinChars int `yaml:"fact_check_min_chars"`

	// FactCheckTimeout bounds each fact-check request.
	FactCheckTimeout time.Duration `yaml:"fact_check_timeout"`
}

// Default returns a configuration with every default applied and the Gemini
// providers selected.
func Default() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Providers: ProvidersConfig{
			S2S:       ProviderEntry{Name: "gemini-live"},
			TTS:       ProviderEntry{Name: "gemini"},
			FactCheck: ProviderEntry{Name: "gemini"},
		},
		Audio: AudioConfig{
			InputSampleRate:  DefaultInputSampleRate,
			OutputSampleRate: DefaultOutputSampleRate,
			FrameSize:        DefaultFrameSize,
			InitialGain:      DefaultInitialGain,
			SummaryGain:      DefaultSummaryGain,
		},
		Game: GameConfig{
			Host:              "professor",
			FactCheckMinChars: DefaultFactCheckMinChars,
			FactCheckTimeout:  DefaultFactCheckTimeout,
		},
	}
}
