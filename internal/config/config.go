package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Store      StoreConfig      `yaml:"store"`
	Memo       MemoConfig       `yaml:"memo"`
	LogLevel   string           `yaml:"log_level"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	SampleRate       int  `yaml:"sample_rate"`
	Channels         int  `yaml:"channels"`
	EchoCancellation bool `yaml:"echo_cancellation"`
	NoiseSuppression bool `yaml:"noise_suppression"`
	AutoGainControl  bool `yaml:"auto_gain_control"`
	ChunkIntervalMs  int  `yaml:"chunk_interval_ms"`
}

// TranscribeConfig selects and tunes the transcription backend.
type TranscribeConfig struct {
	Backend        string `yaml:"backend"` // "local" or "remote"
	ModelPath      string `yaml:"model_path"`
	Language       string `yaml:"language"`
	Threads        int    `yaml:"threads"`
	Endpoint       string `yaml:"endpoint"`
	PollAttempts   int    `yaml:"poll_attempts"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// MemoConfig holds memo aggregation settings.
type MemoConfig struct {
	MaxCount           int `yaml:"max_count"`
	SizeRefreshMinutes int `yaml:"size_refresh_minutes"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "voicememo")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "voicememo")
}

// DefaultModelsDir returns the directory speech models are downloaded to.
func DefaultModelsDir() string {
	return filepath.Join(DefaultDataDir(), "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:       44100,
			Channels:         1,
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
			ChunkIntervalMs:  100,
		},
		Transcribe: TranscribeConfig{
			Backend:        "local",
			ModelPath:      filepath.Join(DefaultModelsDir(), "ggml-tiny.en.bin"),
			Language:       "en",
			Threads:        4,
			Endpoint:       "http://localhost:5000/api/transcribe",
			PollAttempts:   30,
			PollIntervalMs: 2000,
		},
		Store: StoreConfig{
			Dir: DefaultDataDir(),
		},
		Memo: MemoConfig{
			MaxCount:           15,
			SizeRefreshMinutes: 30,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transcribe.ModelPath = expandTilde(cfg.Transcribe.ModelPath)
	cfg.Store.Dir = expandTilde(cfg.Store.Dir)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("audio.channels must be 1 (mono capture), got %d", c.Audio.Channels)
	}
	if c.Audio.ChunkIntervalMs <= 0 {
		return fmt.Errorf("audio.chunk_interval_ms must be > 0")
	}

	switch c.Transcribe.Backend {
	case "local":
		if c.Transcribe.ModelPath == "" {
			return fmt.Errorf("transcribe.model_path must not be empty for the local backend")
		}
	case "remote":
		if c.Transcribe.Endpoint == "" {
			return fmt.Errorf("transcribe.endpoint must not be empty for the remote backend")
		}
		if c.Transcribe.PollAttempts <= 0 {
			return fmt.Errorf("transcribe.poll_attempts must be > 0")
		}
		if c.Transcribe.PollIntervalMs <= 0 {
			return fmt.Errorf("transcribe.poll_interval_ms must be > 0")
		}
	default:
		return fmt.Errorf("transcribe.backend must be \"local\" or \"remote\", got %q", c.Transcribe.Backend)
	}

	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}

	if c.Memo.MaxCount <= 0 {
		return fmt.Errorf("memo.max_count must be > 0")
	}
	if c.Memo.SizeRefreshMinutes <= 0 {
		return fmt.Errorf("memo.size_refresh_minutes must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
