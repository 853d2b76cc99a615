package feedsweep

import (
	"github.com/hazyhaar/feedsweep/feedsweep/internal/config"
)

// Config is the top-level feedsweep configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// FeedConfig describes the feed page.
type FeedConfig = config.FeedConfig

// TimingConfig holds delays and intervals.
type TimingConfig = config.TimingConfig

// ScanConfig caps scan batches.
type ScanConfig = config.ScanConfig

// PolicyConfig holds the dismissal policy.
type PolicyConfig = config.PolicyConfig

// Selectors locate page structures.
type Selectors = config.Selectors

// SinkConfig defines a decision output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the built-in configuration for x.com.
func DefaultConfig() *Config {
	return config.Default()
}
