// Package config holds the pipeline configuration surface: buffering
// windows, retention, duplicate lookback, and collaborator timeouts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the conversation pipeline
type Config struct {
	// BufferWindow is the maximum time a conversation may remain open before
	// forced finalization, regardless of continuing chatter.
	// Default: 5 minutes
	BufferWindow time.Duration `yaml:"-"`

	// SilenceThreshold is the shorter inactivity period that lets a burst
	// that went quiet finish before the hard cap.
	// Must be shorter than BufferWindow by convention.
	// Default: 3 minutes
	SilenceThreshold time.Duration `yaml:"-"`

	// BucketWidth is the time-bucket width used to group non-threaded
	// messages arriving in the same channel.
	// Default: 300 seconds
	BucketWidth time.Duration `yaml:"-"`

	// SweepInterval is how often the sweeper looks for ready conversations.
	// Default: 1 minute
	SweepInterval time.Duration `yaml:"-"`

	// RetentionHorizon is how long finalized conversations are kept before
	// the garbage-collection sweep evicts them.
	// Default: 7 days
	RetentionHorizon time.Duration `yaml:"-"`

	// DedupLookback is the trailing window of recorded tasks compared
	// against each new candidate.
	// Default: 48 hours
	DedupLookback time.Duration `yaml:"-"`

	// ExtractorTimeout bounds each extraction call.
	// Default: 30 seconds
	ExtractorTimeout time.Duration `yaml:"-"`

	// ClassifierTimeout bounds each duplicate-classifier call.
	// Default: 30 seconds
	ClassifierTimeout time.Duration `yaml:"-"`

	// ReleaseIndicators is the policy table of action-indicator phrases that
	// trigger early release. Matched case-insensitively against the most
	// recent message body only. The list is illustrative policy, not a fixed
	// constant; deployments tune it.
	ReleaseIndicators []string `yaml:"release_indicators"`

	// DBPath is the sqlite database file path.
	// Special value ":memory:" creates an in-memory database (tests).
	// Default: ".taskline/taskline.db"
	DBPath string `yaml:"db_path"`
}

// configFile is the YAML shape; durations are written in Go duration syntax
// ("5m", "48h") so the file stays human-editable.
type configFile struct {
	BufferWindow      string   `yaml:"buffer_window,omitempty"`
	SilenceThreshold  string   `yaml:"silence_threshold,omitempty"`
	BucketWidth       string   `yaml:"bucket_width,omitempty"`
	SweepInterval     string   `yaml:"sweep_interval,omitempty"`
	RetentionHorizon  string   `yaml:"retention_horizon,omitempty"`
	DedupLookback     string   `yaml:"dedup_lookback,omitempty"`
	ExtractorTimeout  string   `yaml:"extractor_timeout,omitempty"`
	ClassifierTimeout string   `yaml:"classifier_timeout,omitempty"`
	ReleaseIndicators []string `yaml:"release_indicators,omitempty"`
	DBPath            string   `yaml:"db_path,omitempty"`
}

// DefaultReleaseIndicators is the default early-release policy table:
// direct requests, urgency markers, and deadline markers.
var DefaultReleaseIndicators = []string{
	"can you",
	"could you",
	"please",
	"need you to",
	"asap",
	"urgent",
	"right away",
	"immediately",
	"by eod",
	"by end of day",
	"by tomorrow",
	"deadline",
	"due today",
	"due by",
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		BufferWindow:      5 * time.Minute,
		SilenceThreshold:  3 * time.Minute,
		BucketWidth:       300 * time.Second,
		SweepInterval:     time.Minute,
		RetentionHorizon:  7 * 24 * time.Hour,
		DedupLookback:     48 * time.Hour,
		ExtractorTimeout:  30 * time.Second,
		ClassifierTimeout: 30 * time.Second,
		ReleaseIndicators: append([]string{}, DefaultReleaseIndicators...),
		DBPath:            ".taskline/taskline.db",
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.BufferWindow <= 0 {
		return fmt.Errorf("buffer_window must be positive (got %v)", c.BufferWindow)
	}
	if c.SilenceThreshold <= 0 {
		return fmt.Errorf("silence_threshold must be positive (got %v)", c.SilenceThreshold)
	}
	if c.SilenceThreshold >= c.BufferWindow {
		return fmt.Errorf("silence_threshold (%v) must be shorter than buffer_window (%v)",
			c.SilenceThreshold, c.BufferWindow)
	}
	if c.BucketWidth <= 0 {
		return fmt.Errorf("bucket_width must be positive (got %v)", c.BucketWidth)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive (got %v)", c.SweepInterval)
	}
	if c.RetentionHorizon < c.BufferWindow {
		return fmt.Errorf("retention_horizon (%v) must be at least buffer_window (%v)",
			c.RetentionHorizon, c.BufferWindow)
	}
	if c.DedupLookback <= 0 {
		return fmt.Errorf("dedup_lookback must be positive (got %v)", c.DedupLookback)
	}
	if c.DedupLookback > 30*24*time.Hour {
		return fmt.Errorf("dedup_lookback too large (got %v, max 30 days)", c.DedupLookback)
	}
	if c.ExtractorTimeout <= 0 || c.ExtractorTimeout > 5*time.Minute {
		return fmt.Errorf("extractor_timeout must be in (0, 5m] (got %v)", c.ExtractorTimeout)
	}
	if c.ClassifierTimeout <= 0 || c.ClassifierTimeout > 5*time.Minute {
		return fmt.Errorf("classifier_timeout must be in (0, 5m] (got %v)", c.ClassifierTimeout)
	}
	if len(c.ReleaseIndicators) == 0 {
		return fmt.Errorf("release_indicators cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	return nil
}

// Load reads configuration from a YAML file, layering it over the defaults.
// A missing file is not an error: defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := applyFile(&cfg, &file); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, file *configFile) error {
	durations := []struct {
		raw  string
		dest *time.Duration
		name string
	}{
		{file.BufferWindow, &cfg.BufferWindow, "buffer_window"},
		{file.SilenceThreshold, &cfg.SilenceThreshold, "silence_threshold"},
		{file.BucketWidth, &cfg.BucketWidth, "bucket_width"},
		{file.SweepInterval, &cfg.SweepInterval, "sweep_interval"},
		{file.RetentionHorizon, &cfg.RetentionHorizon, "retention_horizon"},
		{file.DedupLookback, &cfg.DedupLookback, "dedup_lookback"},
		{file.ExtractorTimeout, &cfg.ExtractorTimeout, "extractor_timeout"},
		{file.ClassifierTimeout, &cfg.ClassifierTimeout, "classifier_timeout"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dest = parsed
	}

	if len(file.ReleaseIndicators) > 0 {
		cfg.ReleaseIndicators = file.ReleaseIndicators
	}
	if file.DBPath != "" {
		cfg.DBPath = file.DBPath
	}
	return nil
}

// FromEnv layers environment variable overrides onto a config.
//
// Environment variables:
//   - TASKLINE_BUFFER_WINDOW_SECS: buffering window in seconds (default: 300)
//   - TASKLINE_SILENCE_THRESHOLD_SECS: silence threshold in seconds (default: 180)
//   - TASKLINE_BUCKET_WIDTH_SECS: time-bucket width in seconds (default: 300)
//   - TASKLINE_SWEEP_INTERVAL_SECS: sweep cadence in seconds (default: 60)
//   - TASKLINE_RETENTION_DAYS: finalized conversation retention in days (default: 7)
//   - TASKLINE_DEDUP_LOOKBACK_HOURS: duplicate lookback in hours (default: 48)
//   - TASKLINE_EXTRACTOR_TIMEOUT_SECS: extractor call timeout (default: 30)
//   - TASKLINE_CLASSIFIER_TIMEOUT_SECS: classifier call timeout (default: 30)
//   - TASKLINE_DB_PATH: sqlite database path
//
// Returns an error if any variable has an invalid value.
func FromEnv(cfg Config) (Config, error) {
	if err := parseEnvDuration("TASKLINE_BUFFER_WINDOW_SECS", &cfg.BufferWindow, time.Second); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("TASKLINE_SILENCE_THRESHOLD_SECS", &cfg.SilenceThreshold, time.Second); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("TASKLINE_BUCKET_WIDTH_SECS", &cfg.BucketWidth, time.Second); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("TASKLINE_SWEEP_INTERVAL_SECS", &cfg.SweepInterval, time.Second); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("TASKLINE_RETENTION_DAYS", &cfg.RetentionHorizon, 24*time.Hour); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("TASKLINE_DEDUP_LOOKBACK_HOURS", &cfg.DedupLookback, time.Hour); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("TASKLINE_EXTRACTOR_TIMEOUT_SECS", &cfg.ExtractorTimeout, time.Second); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("TASKLINE_CLASSIFIER_TIMEOUT_SECS", &cfg.ClassifierTimeout, time.Second); err != nil {
		return cfg, err
	}
	if path := os.Getenv("TASKLINE_DB_PATH"); path != "" {
		cfg.DBPath = path
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvDuration parses a numeric environment variable into a duration.
// The multiplier converts the numeric value (e.g. for days: 24*time.Hour).
func parseEnvDuration(key string, dest *time.Duration, multiplier time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * multiplier
	return nil
}
