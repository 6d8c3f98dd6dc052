package dedup

import (
	"fmt"
	"time"
)

// Config holds configuration for the duplicate check
type Config struct {
	// Lookback is the trailing window of recorded tasks compared against
	// each new candidate.
	// Default: 48 hours
	Lookback time.Duration

	// MaxCandidates caps how many window tasks are sent to the classifier.
	// Bounds prompt size and API cost on busy deployments.
	// Default: 50
	MaxCandidates int

	// RequestTimeout bounds each classifier call.
	// Default: 30 seconds
	RequestTimeout time.Duration
}

// DefaultConfig returns the default duplicate-check configuration
func DefaultConfig() Config {
	return Config{
		Lookback:       48 * time.Hour,
		MaxCandidates:  50,
		RequestTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive (got %v)", c.Lookback)
	}
	if c.Lookback > 30*24*time.Hour {
		return fmt.Errorf("lookback too large (got %v, max 30 days)", c.Lookback)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive (got %d)", c.MaxCandidates)
	}
	if c.MaxCandidates > 500 {
		return fmt.Errorf("max_candidates too large (got %d, max 500)", c.MaxCandidates)
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("request_timeout must be in (0, 5m] (got %v)", c.RequestTimeout)
	}
	return nil
}
