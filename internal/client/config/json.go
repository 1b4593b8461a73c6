package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/reelproof/reelproof/internal/flagx"
	"github.com/reelproof/reelproof/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like
// "500ms" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointURL   string           `json:"server_endpoint_url"`
	MaxConcurrent       *int             `json:"max_concurrent"`
	ChunkSizeBytes      *int64           `json:"chunk_size_bytes"`
	RetryDelays         []timex.Duration `json:"retry_delays"`
	SpeedSampleInterval *timex.Duration  `json:"speed_sample_interval"`
	ResumeDBPath        string           `json:"resume_db_path"`
}

// parseJson overlays Config with values loaded from a JSON file selected via
// the -c/-config flags. Absent fields keep their current values; read or
// unmarshal errors panic (caller may recover).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointURL != "" {
		cfg.ServerEndpointURL = jc.ServerEndpointURL
	}
	if jc.MaxConcurrent != nil {
		cfg.MaxConcurrent = *jc.MaxConcurrent
	}
	if jc.ChunkSizeBytes != nil {
		cfg.ChunkSizeBytes = *jc.ChunkSizeBytes
	}
	if jc.RetryDelays != nil {
		delays := make([]time.Duration, 0, len(jc.RetryDelays))
		for _, d := range jc.RetryDelays {
			delays = append(delays, d.Duration)
		}
		cfg.RetryDelays = delays
	}
	if jc.SpeedSampleInterval != nil {
		cfg.SpeedSampleInterval = jc.SpeedSampleInterval.Duration
	}
	if jc.ResumeDBPath != "" {
		cfg.ResumeDBPath = jc.ResumeDBPath
	}
}
