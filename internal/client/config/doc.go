// Package config loads runtime configuration for the PlotKeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend HTTP API
//	-d string   path to the local SQLite cache database
//	-i int      connectivity probe interval (seconds)
//	-s int      periodic sync interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_base_url": "http://127.0.0.1:8080",
//	  "database_path": "plotkeeper.db",
//	  "sync_interval": "30s",
//	  "online_check_interval": "3s",
//	  "request_timeout": "10s",
//	  "max_retries": 3,
//	  "max_cached_blobs": 50
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
