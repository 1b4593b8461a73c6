// Package config loads runtime configuration for the Reelproof upload CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend REST API
//	-n int      maximum number of concurrent uploads
//	-d string   path to the resume-state sqlite database
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "500ms" or integer nanoseconds:
//
//	{
//	  "server_endpoint_url": "http://127.0.0.1:8080",
//	  "max_concurrent": 3,
//	  "chunk_size_bytes": 5242880,
//	  "retry_delays": ["0s", "1s", "3s", "5s"],
//	  "speed_sample_interval": "500ms",
//	  "resume_db_path": "reelproof-resume.db"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
