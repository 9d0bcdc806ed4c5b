package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/MrWong99/quizhost/internal/host"
	"github.com/MrWong99/quizhost/pkg/audio"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"s2s":       {"gemini-live"},
	"tts":       {"gemini"},
	"factcheck": {"gemini"},
}

// APIKeyEnv and FallbackAPIKeyEnv name the environment variables consulted
// by [ApplyEnv], in order.
const (
	APIKeyEnv         = "GEMINI_API_KEY"
	FallbackAPIKeyEnv = "API_KEY"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. A missing file yields [Default].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result. Keys absent from r keep their defaults; unknown keys are an
// error.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the .env file at path into the
// process environment without overriding variables that are already set. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	return nil
}

// ApplyEnv fills every provider API key left empty in cfg from
// [APIKeyEnv], falling back to [FallbackAPIKeyEnv]. getenv is usually
// [os.Getenv].
func ApplyEnv(cfg *Config, getenv func(string) string) {
	key := getenv(APIKeyEnv)
	if key == "" {
		key = getenv(FallbackAPIKeyEnv)
	}
	if key == "" {
		return
	}
	for _, e := range []*ProviderEntry{&cfg.Providers.S2S, &cfg.Providers.TTS, &cfg.Providers.FactCheck} {
		if e.APIKey == "" {
			e.APIKey = key
		}
	}
}

// RequireCredentials reports which configured providers still have no API
// key. Call it after [ApplyEnv].
func RequireCredentials(cfg *Config) error {
	var errs []error
	check := func(kind string, e ProviderEntry) {
		if e.Name != "" && e.APIKey == "" {
			errs = append(errs, fmt.Errorf("providers.%s.api_key is empty; set it or export %s", kind, APIKeyEnv))
		}
	}
	check("s2s", cfg.Providers.S2S)
	check("tts", cfg.Providers.TTS)
	check("factcheck", cfg.Providers.FactCheck)
	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	if cfg.Providers.S2S.Name == "" {
		errs = append(errs, errors.New("providers.s2s.name is required"))
	}
	validateProviderName("s2s", cfg.Providers.S2S.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("factcheck", cfg.Providers.FactCheck.Name)
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; the end-of-game summary will not be spoken")
	}
	if cfg.Providers.FactCheck.Name == "" {
		slog.Warn("providers.factcheck is not configured; host statements will not be fact-checked")
	}

	// Audio: the live channel only speaks the two fixed formats.
	if cfg.Audio.InputSampleRate != audio.InputSampleRate {
		errs = append(errs, fmt.Errorf("audio.input_sample_rate %d is unsupported; only %d", cfg.Audio.InputSampleRate, audio.InputSampleRate))
	}
	if cfg.Audio.OutputSampleRate != audio.OutputSampleRate {
		errs = append(errs, fmt.Errorf("audio.output_sample_rate %d is unsupported; only %d", cfg.Audio.OutputSampleRate, audio.OutputSampleRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}
	if cfg.Audio.InitialGain < 0 || cfg.Audio.InitialGain > MaxGain {
		errs = append(errs, fmt.Errorf("audio.initial_gain %.2f is out of range [0, %.0f]", cfg.Audio.InitialGain, MaxGain))
	}
	if cfg.Audio.SummaryGain < 0 || cfg.Audio.SummaryGain > MaxGain {
		errs = append(errs, fmt.Errorf("audio.summary_gain %.2f is out of range [0, %.0f]", cfg.Audio.SummaryGain, MaxGain))
	}
	if cfg.Audio.SpeakerBufferMS < 0 {
		errs = append(errs, fmt.Errorf("audio.speaker_buffer_ms %d must not be negative", cfg.Audio.SpeakerBufferMS))
	}

	// Game
	if _, err := host.Lookup(cfg.Game.Host); err != nil {
		errs = append(errs, fmt.Errorf("game.host: %w", err))
	}
	if cfg.Game.FactCheckMinChars < 0 {
		errs = append(errs, fmt.Errorf("game.fact_check_min_chars %d must not be negative", cfg.Game.FactCheckMinChars))
	}
	if cfg.Game.FactCheckTimeout < 0 {
		errs = append(errs, fmt.Errorf("game.fact_check_timeout %s must not be negative", cfg.Game.FactCheckTimeout))
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
