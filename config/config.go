package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRefreshInterval = 15
	DefaultMaxItemsPerFeed = 200
	DefaultFetchTimeout    = 30
)

// FeedConfig is one feed entry from the TOML config file.
type FeedConfig struct {
	Name          string `toml:"name"`
	URL           string `toml:"url"`
	HasDiscussion bool   `toml:"has_discussion"`
}

// Config is the top-level feeds.toml configuration. It is loaded once at
// startup and never re-read.
type Config struct {
	// Refresh interval in minutes
	RefreshInterval int `toml:"refresh_interval"`
	// Per-feed retention cap; oldest items are pruned beyond it
	MaxItemsPerFeed int `toml:"max_items_per_feed"`
	// Per-request fetch timeout in seconds
	FetchTimeout int          `toml:"fetch_timeout"`
	Feeds        []FeedConfig `toml:"feeds"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses TOML config bytes. Split out from LoadConfig so tests
// can feed literals.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	if config.MaxItemsPerFeed <= 0 {
		config.MaxItemsPerFeed = DefaultMaxItemsPerFeed
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}

	return &config, nil
}
