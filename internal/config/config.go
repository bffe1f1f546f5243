package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tutor configuration.
type Config struct {
	// Directory for the database, TTS cache and pre-recorded audio.
	DataDir string `yaml:"data_dir"`

	Server   ServerConfig   `yaml:"server"`
	Practice PracticeConfig `yaml:"practice"`
	Speech   SpeechConfig   `yaml:"speech"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// PracticeConfig tunes the practice stepper and session storage.
type PracticeConfig struct {
	AdvanceDelay  string `yaml:"advance_delay"`  // pause on a correct answer before moving on
	ShakeDuration string `yaml:"shake_duration"` // how long a wrong option stays flagged
	SessionTTL    string `yaml:"session_ttl"`    // idle sessions are evicted after this
	SnapshotTTL   string `yaml:"snapshot_ttl"`   // evicted sessions can be resumed for this long
	RedisURL      string `yaml:"redis_url"`      // empty keeps snapshots in memory
}

type SpeechConfig struct {
	APIKey        string `yaml:"api_key"`
	DefaultLocale string `yaml:"default_locale"`
	Timeout       string `yaml:"timeout"`
}

type LoggingConfig struct {
	Mode string `yaml:"mode"` // dev, prod
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		DataDir: ".",
		Server: ServerConfig{
			Addr:            ":8282",
			ShutdownTimeout: "10s",
		},
		Practice: PracticeConfig{
			AdvanceDelay:  "1200ms",
			ShakeDuration: "600ms",
			SessionTTL:    "2h",
			SnapshotTTL:   "24h",
		},
		Speech: SpeechConfig{
			DefaultLocale: "en-US",
			Timeout:       "10s",
		},
		Logging: LoggingConfig{
			Mode: "dev",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TUTOR_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("GOOGLE_TTS_API_KEY"); v != "" {
		c.Speech.APIKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Practice.RedisURL = v
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		c.Logging.Mode = v
	}
}

// Validate checks that every duration parses.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"practice.advance_delay":  c.Practice.AdvanceDelay,
		"practice.shake_duration": c.Practice.ShakeDuration,
		"practice.session_ttl":    c.Practice.SessionTTL,
		"practice.snapshot_ttl":   c.Practice.SnapshotTTL,
		"speech.timeout":          c.Speech.Timeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	return nil
}

// Duration parses a validated duration string.
func Duration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

func (c *Config) DatabasePath() string { return filepath.Join(c.DataDir, "tutor.db") }
func (c *Config) CacheDir() string     { return filepath.Join(c.DataDir, "tts_cache") }
func (c *Config) AudioDir() string     { return filepath.Join(c.DataDir, "audio") }
