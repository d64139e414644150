package config

import (
	"encoding/json"
	"os"

	"github.com/carelink-app/carelink/internal/flagx"
	"github.com/carelink-app/carelink/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "15s"
// or as integer nanoseconds. After parsing, set values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerBaseURL  *string         `json:"server_base_url"`
	DeviceID       *string         `json:"device_id"`
	SessionFile    *string         `json:"session_file"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	ExpiryBuffer   *timex.Duration `json:"expiry_buffer"`
	OfflineGrace   *timex.Duration `json:"offline_grace"`
}

// parseJson overlays Config with values loaded from the JSON file given via
// -c or -config. With no flag, nothing is loaded. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
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

	if jc.ServerBaseURL != nil {
		cfg.ServerBaseURL = *jc.ServerBaseURL
	}
	if jc.DeviceID != nil {
		cfg.DeviceID = *jc.DeviceID
	}
	if jc.SessionFile != nil {
		cfg.SessionFile = *jc.SessionFile
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.ExpiryBuffer != nil {
		cfg.ExpiryBuffer = jc.ExpiryBuffer.Duration
	}
	if jc.OfflineGrace != nil {
		cfg.OfflineGrace = jc.OfflineGrace.Duration
	}
}
