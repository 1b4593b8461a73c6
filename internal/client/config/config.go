package config

import "time"

// Config holds runtime settings for the Reelproof upload CLI.
type Config struct {
	// ServerEndpointURL is the base URL of the backend REST API.
	ServerEndpointURL string
	// MaxConcurrent caps simultaneous uploads.
	MaxConcurrent int
	// ChunkSizeBytes is the size of each upload chunk.
	ChunkSizeBytes int64
	// RetryDelays is the escalating wait schedule for transient chunk
	// failures.
	RetryDelays []time.Duration
	// SpeedSampleInterval is the minimum spacing between upload speed
	// recalculations.
	SpeedSampleInterval time.Duration
	// ResumeDBPath is the sqlite file storing resume state.
	ResumeDBPath string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointURL = "http://127.0.0.1:8080"
	c.MaxConcurrent = 3
	c.ChunkSizeBytes = 5 * 1024 * 1024
	c.RetryDelays = []time.Duration{0, 1 * time.Second, 3 * time.Second, 5 * time.Second}
	c.SpeedSampleInterval = 500 * time.Millisecond
	c.ResumeDBPath = "reelproof-resume.db"
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
