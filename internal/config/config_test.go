package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Audio.SampleRate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("Audio.Channels = %d, want 1", cfg.Audio.Channels)
	}
	if !cfg.Audio.EchoCancellation || !cfg.Audio.NoiseSuppression || !cfg.Audio.AutoGainControl {
		t.Error("audio processing toggles should default to enabled")
	}
	if cfg.Transcribe.Backend != "local" {
		t.Errorf("Transcribe.Backend = %q, want %q", cfg.Transcribe.Backend, "local")
	}
	if cfg.Transcribe.ModelPath == "" {
		t.Error("Transcribe.ModelPath should not be empty")
	}
	if cfg.Memo.MaxCount != 15 {
		t.Errorf("Memo.MaxCount = %d, want 15", cfg.Memo.MaxCount)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config failed validation: %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
audio:
  sample_rate: 16000
  chunk_interval_ms: 50
transcribe:
  backend: remote
  endpoint: http://example.com/api/transcribe
  poll_attempts: 5
  poll_interval_ms: 100
store:
  dir: /tmp/voicememo-test
memo:
  max_count: 10
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Transcribe.Backend != "remote" {
		t.Errorf("Transcribe.Backend = %q, want %q", cfg.Transcribe.Backend, "remote")
	}
	if cfg.Transcribe.Endpoint != "http://example.com/api/transcribe" {
		t.Errorf("Transcribe.Endpoint = %q, want the configured endpoint", cfg.Transcribe.Endpoint)
	}
	if cfg.Memo.MaxCount != 10 {
		t.Errorf("Memo.MaxCount = %d, want 10", cfg.Memo.MaxCount)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Audio.Channels != 1 {
		t.Errorf("Audio.Channels = %d, want default 1", cfg.Audio.Channels)
	}
	if cfg.Memo.SizeRefreshMinutes != 30 {
		t.Errorf("Memo.SizeRefreshMinutes = %d, want default 30", cfg.Memo.SizeRefreshMinutes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	yamlContent := `
transcribe:
  model_path: ~/models/test.bin
store:
  dir: ~/voicememo-data
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if strings.HasPrefix(cfg.Transcribe.ModelPath, "~") {
		t.Errorf("ModelPath = %q, tilde should be expanded", cfg.Transcribe.ModelPath)
	}
	if strings.HasPrefix(cfg.Store.Dir, "~") {
		t.Errorf("Store.Dir = %q, tilde should be expanded", cfg.Store.Dir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, true},
		{"stereo capture", func(c *Config) { c.Audio.Channels = 2 }, true},
		{"zero chunk interval", func(c *Config) { c.Audio.ChunkIntervalMs = 0 }, true},
		{"unknown backend", func(c *Config) { c.Transcribe.Backend = "cloud" }, true},
		{"local without model", func(c *Config) { c.Transcribe.ModelPath = "" }, true},
		{"remote without endpoint", func(c *Config) {
			c.Transcribe.Backend = "remote"
			c.Transcribe.Endpoint = ""
		}, true},
		{"remote valid", func(c *Config) { c.Transcribe.Backend = "remote" }, false},
		{"zero memo cap", func(c *Config) { c.Memo.MaxCount = 0 }, true},
		{"empty store dir", func(c *Config) { c.Store.Dir = "" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
