package config

import (
	"encoding/json"
	"os"

	"github.com/dkravcenko/plotkeeper/internal/flagx"
	"github.com/dkravcenko/plotkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerBaseURL       string         `json:"server_base_url"`
	DatabasePath        string         `json:"database_path"`
	Tables              []string       `json:"tables"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	MaxRetries          *int           `json:"max_retries"`
	MaxCachedBlobs      *int           `json:"max_cached_blobs"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags via flagx.JsonConfigFlags; if no path
// is given the function is a no-op. Fields absent from the JSON keep their
// current values. Panics on read or unmarshal errors.
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

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if len(jc.Tables) > 0 {
		cfg.Tables = jc.Tables
	}
	if jc.SyncInterval > 0 {
		cfg.SyncInterval = jc.SyncInterval.Std()
	}
	if jc.OnlineCheckInterval > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Std()
	}
	if jc.RequestTimeout > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Std()
	}
	if jc.MaxRetries != nil {
		cfg.MaxRetries = *jc.MaxRetries
	}
	if jc.MaxCachedBlobs != nil {
		cfg.MaxCachedBlobs = *jc.MaxCachedBlobs
	}
}
