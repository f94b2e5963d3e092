// Package config provides configuration management for Chronicle.
// Settings come from built-in defaults, an optional YAML file, and
// environment variables with the CHRONICLE_ prefix, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "CHRONICLE_"

// DatabaseFile is the bulk store's file name inside DataDir.
const DatabaseFile = "chronicle.db"

// Config holds all configuration settings for Chronicle.
type Config struct {
	DataDir string `env:"DATA_DIR" envDefault:"./data" yaml:"data_dir"` // Database and progress record live here

	Storage   StorageConfig   `envPrefix:"STORAGE_" yaml:"storage"`
	Resolver  ResolverConfig  `envPrefix:"RESOLVER_" yaml:"resolver"`
	Ledger    LedgerConfig    `envPrefix:"LEDGER_" yaml:"ledger"`
	Context   ContextConfig   `envPrefix:"CONTEXT_" yaml:"context"`
	Archive   ArchiveConfig   `envPrefix:"ARCHIVE_" yaml:"archive"`
	Embedding EmbeddingConfig `envPrefix:"EMBEDDING_" yaml:"embedding"`
	Log       LogConfig       `envPrefix:"LOG_" yaml:"log"`
}

// StorageConfig contains sqlite settings.
type StorageConfig struct {
	BusyTimeout     time.Duration `env:"BUSY_TIMEOUT" envDefault:"5s" yaml:"busy_timeout"`      // sqlite busy_timeout pragma
	ReadConns       int           `env:"READ_CONNS" envDefault:"4" yaml:"read_conns"`           // Read pool size
	RetryMaxTries   uint          `env:"RETRY_MAX_TRIES" envDefault:"5" yaml:"retry_max_tries"` // Attempts on lock contention
	RetryMaxElapsed time.Duration `env:"RETRY_MAX_ELAPSED" envDefault:"3s" yaml:"retry_max_elapsed"`
}

// ResolverConfig contains disambiguation thresholds.
type ResolverConfig struct {
	AdoptThreshold  float64 `env:"ADOPT_THRESHOLD" envDefault:"0.8" yaml:"adopt_threshold"`   // Above: adopted
	ReviewThreshold float64 `env:"REVIEW_THRESHOLD" envDefault:"0.5" yaml:"review_threshold"` // Below: pending review
	MaxCandidates   int     `env:"MAX_CANDIDATES" envDefault:"5" yaml:"max_candidates"`
}

// LedgerConfig contains state history settings.
type LedgerConfig struct {
	// SignificantFields is the allow-list of attributes whose changes are
	// recorded. "*" records everything.
	SignificantFields []string `env:"SIGNIFICANT_FIELDS" envSeparator:"," envDefault:"realm,layer,location,faction,master,owner,holder,bottleneck,injury,health,level,artifacts,skills,titles" yaml:"significant_fields"`

	CacheSize int `env:"CACHE_SIZE" envDefault:"512" yaml:"cache_size"` // Replay cache entries
}

// ContextConfig contains context package settings.
type ContextConfig struct {
	Budget          int      `env:"BUDGET" envDefault:"6000" yaml:"budget"`      // Token budget
	Template        string   `env:"TEMPLATE" envDefault:"plot" yaml:"template"`  // plot, battle, emotion, transition
	Decay           string   `env:"DECAY" envDefault:"exponential" yaml:"decay"` // exponential or hyperbolic
	HalfLife        float64  `env:"HALF_LIFE" envDefault:"10" yaml:"half_life"`  // Chapters
	WeightRecency   float64  `env:"WEIGHT_RECENCY" envDefault:"0.7" yaml:"weight_recency"`
	WeightFrequency float64  `env:"WEIGHT_FREQUENCY" envDefault:"0.3" yaml:"weight_frequency"`
	WeightSignal    float64  `env:"WEIGHT_SIGNAL" envDefault:"0.2" yaml:"weight_signal"`
	SignalKeywords  []string `env:"SIGNAL_KEYWORDS" envSeparator:"," yaml:"signal_keywords"`  // Empty means the built-in list
	SummaryWindow   int      `env:"SUMMARY_WINDOW" envDefault:"3" yaml:"summary_window"`      // Previous chapters summarised in core
	SceneWindow     int      `env:"SCENE_WINDOW" envDefault:"10" yaml:"scene_window"`         // Lookback for active entities
	SkeletonEvery   int      `env:"SKELETON_EVERY" envDefault:"50" yaml:"skeleton_every"`     // Story skeleton sampling interval
	CompactionFloor int      `env:"COMPACTION_FLOOR" envDefault:"32" yaml:"compaction_floor"` // Minimum tokens worth truncating into
}

// ArchiveConfig contains inactivity archiving settings.
type ArchiveConfig struct {
	Enabled          bool `env:"ENABLED" envDefault:"true" yaml:"enabled"`
	InactiveChapters int  `env:"INACTIVE_CHAPTERS" envDefault:"50" yaml:"inactive_chapters"`
	CheckEvery       int  `env:"CHECK_EVERY" envDefault:"10" yaml:"check_every"`
}

// EmbeddingConfig contains the scene embedding client settings.
type EmbeddingConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"false" yaml:"enabled"`
	BaseURL         string        `env:"BASE_URL" yaml:"base_url"` // OpenAI-compatible endpoint; empty means api.openai.com
	APIKey          string        `env:"API_KEY" yaml:"-"`         // Never read from or written to files
	Model           string        `env:"MODEL" envDefault:"text-embedding-3-small" yaml:"model"`
	RatePerSecond   float64       `env:"RATE_PER_SECOND" envDefault:"2" yaml:"rate_per_second"`
	Burst           int           `env:"BURST" envDefault:"4" yaml:"burst"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"30s" yaml:"timeout"`
	BreakerFailures uint32        `env:"BREAKER_FAILURES" envDefault:"5" yaml:"breaker_failures"`   // Consecutive failures before opening
	BreakerCooldown time.Duration `env:"BREAKER_COOLDOWN" envDefault:"60s" yaml:"breaker_cooldown"` // Open-state duration
}

// LogConfig contains logging settings.
type LogConfig struct {
	Mode  string `env:"MODE" envDefault:"development" yaml:"mode"` // development or production
	Level string `env:"LEVEL" envDefault:"info" yaml:"level"`
}

// DatabasePath returns the sqlite file path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseFile)
}

// Default returns the built-in defaults, ignoring the environment.
func Default() (*Config, error) {
	cfg := &Config{}
	// An empty, non-nil environment yields defaults only.
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: map[string]string{}}); err != nil {
		return nil, fmt.Errorf("config: invalid defaults: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads defaults and environment variables.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load layers defaults, the YAML file at path (when non-empty) and the
// environment, then validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	// Defaults are disabled here so that unset variables keep file values.
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, DefaultValueTagName: "envNoDefault"}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.DataDir) != "", "data_dir is required")
	check(c.Storage.ReadConns >= 1, "storage.read_conns must be >= 1, got %d", c.Storage.ReadConns)
	check(c.Storage.BusyTimeout >= 0, "storage.busy_timeout must not be negative")

	r := c.Resolver
	check(r.ReviewThreshold >= 0 && r.ReviewThreshold <= r.AdoptThreshold && r.AdoptThreshold < 1,
		"resolver thresholds need 0 <= review (%.2f) <= adopt (%.2f) < 1", r.ReviewThreshold, r.AdoptThreshold)
	check(r.MaxCandidates >= 1, "resolver.max_candidates must be >= 1, got %d", r.MaxCandidates)

	check(c.Ledger.CacheSize >= 1, "ledger.cache_size must be >= 1, got %d", c.Ledger.CacheSize)

	x := c.Context
	check(x.Budget > 0, "context.budget must be > 0, got %d", x.Budget)
	check(x.HalfLife > 0, "context.half_life must be > 0, got %g", x.HalfLife)
	check(x.Decay == "exponential" || x.Decay == "hyperbolic", "context.decay must be exponential or hyperbolic, got %q", x.Decay)
	check(x.WeightRecency >= 0 && x.WeightFrequency >= 0 && x.WeightSignal >= 0, "context weights must not be negative")
	check(x.SummaryWindow >= 0 && x.SceneWindow >= 1 && x.SkeletonEvery >= 1, "context windows out of range")

	check(c.Archive.InactiveChapters >= 1, "archive.inactive_chapters must be >= 1, got %d", c.Archive.InactiveChapters)
	check(c.Archive.CheckEvery >= 1, "archive.check_every must be >= 1, got %d", c.Archive.CheckEvery)

	if c.Embedding.Enabled {
		check(c.Embedding.Model != "", "embedding.model is required when embedding is enabled")
		check(c.Embedding.RatePerSecond > 0, "embedding.rate_per_second must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
