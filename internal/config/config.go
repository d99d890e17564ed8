// Package config loads the YAML configuration for mentions and mctl.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/mentions/internal/fetch"
	"github.com/abelbrown/mentions/internal/model"
)

const (
	defaultFetchTimeoutSecs = 30
	defaultMaxConcurrent    = 4
	defaultRequestsPerSec   = 2.0
	defaultLogLevel         = "info"
	defaultKeepLoads        = 500
)

// Source is one configured export file or URL.
type Source struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Tier     string `yaml:"tier,omitempty"` // "high", "low" or empty for scored exports
}

// ViewConfig holds UI preferences.
type ViewConfig struct {
	Tier string `yaml:"tier"` // tab selected on startup
}

// Config is the runtime configuration.
type Config struct {
	Sources           []Source   `yaml:"sources"`
	FetchTimeoutSecs  int        `yaml:"fetch_timeout_secs"`
	MaxConcurrent     int        `yaml:"max_concurrent_fetches"`
	RequestsPerSecond float64    `yaml:"requests_per_second"`
	Refresh           string     `yaml:"refresh"` // cron spec, empty disables
	Watch             bool       `yaml:"watch"`
	DBPath            string     `yaml:"db_path"`
	EventLogPath      string     `yaml:"event_log_path"`
	LogDir            string     `yaml:"log_dir"`
	LogLevel          string     `yaml:"log_level"`
	KeepLoads         int        `yaml:"keep_loads"`
	View              ViewConfig `yaml:"view"`
}

// Dir returns ~/.mentions, falling back to ./.mentions without a home dir.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".mentions"
	}
	return filepath.Join(home, ".mentions")
}

// Path returns the config file location: $MENTIONS_CONFIG or
// ~/.mentions/config.yaml.
func Path() string {
	if p := os.Getenv("MENTIONS_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration: the paired high/low exports
// under ./frontend/public/scrapes, watched for changes.
func Default() *Config {
	cfg := &Config{Watch: true}
	for _, s := range fetch.DefaultSources(fetch.DefaultScrapeDir) {
		cfg.Sources = append(cfg.Sources, Source{Name: s.Name, Location: s.Location, Tier: string(s.Tier)})
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads the file at Path. A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads path, applies defaults and environment overrides, and
// validates the result. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{Watch: true}

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
		if len(cfg.Sources) == 0 {
			cfg.Sources = Default().Sources
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FetchTimeoutSecs <= 0 {
		c.FetchTimeoutSecs = defaultFetchTimeoutSecs
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = defaultRequestsPerSec
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(Dir(), "mentions.db")
	}
	if c.EventLogPath == "" {
		c.EventLogPath = filepath.Join(Dir(), "events.jsonl")
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(Dir(), "logs")
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.KeepLoads <= 0 {
		c.KeepLoads = defaultKeepLoads
	}
	if c.View.Tier == "" {
		c.View.Tier = string(model.TierHigh)
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MENTIONS_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("MENTIONS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for errors a load would trip over.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("at least one source is required")
	}
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if strings.TrimSpace(s.Location) == "" {
			return fmt.Errorf("source %q: location is required", s.Name)
		}
		if strings.Contains(s.Location, "://") {
			u, err := url.Parse(s.Location)
			if err != nil {
				return fmt.Errorf("source %q: invalid location: %w", s.Name, err)
			}
			switch u.Scheme {
			case "http", "https", "file":
			default:
				return fmt.Errorf("source %q: unsupported scheme %q", s.Name, u.Scheme)
			}
		}
		if s.Tier != "" {
			if _, err := model.ParseTier(s.Tier); err != nil {
				return fmt.Errorf("source %q: %w", s.Name, err)
			}
		}
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("requests_per_second must not be negative")
	}
	if c.Refresh != "" {
		if _, err := cron.ParseStandard(c.Refresh); err != nil {
			return fmt.Errorf("refresh must be a cron spec: %w", err)
		}
	}
	if _, err := model.ParseTier(c.View.Tier); err != nil {
		return fmt.Errorf("view.tier: %w", err)
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	return nil
}

// FetchSources converts the configured sources for the fetcher.
func (c *Config) FetchSources() []fetch.Source {
	out := make([]fetch.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		tier, _ := model.ParseTier(s.Tier)
		out = append(out, fetch.Source{Name: s.Name, Location: s.Location, Tier: tier})
	}
	return out
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
