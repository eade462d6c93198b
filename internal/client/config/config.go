package config

import "time"

// Config holds runtime settings for the PlotKeeper client.
type Config struct {
	// ServerBaseURL is the base URL of the backend HTTP API.
	ServerBaseURL string
	// DatabasePath is the local SQLite cache file.
	DatabasePath string
	// Tables lists the synchronized record tables, in pull order.
	Tables []string

	// SyncInterval is how often the periodic sync cycle runs.
	SyncInterval time.Duration
	// OnlineCheckInterval is how often the client probes server reachability.
	OnlineCheckInterval time.Duration
	// RequestTimeout bounds a single HTTP request to the backend.
	RequestTimeout time.Duration

	// MaxRetries is the number of re-deliveries a queued mutation gets
	// before it is dead-lettered.
	MaxRetries int
	// MaxCachedBlobs caps the attachment cache size in blobs.
	MaxCachedBlobs int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "plotkeeper.db"
	c.Tables = []string{
		"profiles",
		"diary_entries",
		"events",
		"event_rsvps",
		"posts",
		"tasks",
		"albums",
		"photos",
	}
	c.SyncInterval = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.MaxRetries = 3
	c.MaxCachedBlobs = 50
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
