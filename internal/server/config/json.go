package config

import (
	"encoding/json"
	"os"

	"github.com/carelink-app/carelink/internal/flagx"
	"github.com/carelink-app/carelink/internal/timex"
)

// JsonConfig is the JSON-file shape of Config. Durations accept either
// strings like "24h" or integer nanoseconds. Unset fields keep their
// previous (default) values.
type JsonConfig struct {
	EndpointAddrHTTP *string         `json:"endpoint_addr_http"`
	DatabaseDSN      *string         `json:"database_dsn"`
	SecretKey        *string         `json:"secret_key"`
	TokenIssuer      *string         `json:"token_issuer"`
	TokenAudience    *string         `json:"token_audience"`
	AccessTokenTTL   *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL  *timex.Duration `json:"refresh_token_ttl"`

	Argon2MemoryKB    *uint32 `json:"argon2_memory_kb"`
	Argon2Time        *uint32 `json:"argon2_time"`
	Argon2Parallelism *uint8  `json:"argon2_parallelism"`

	MaxLoginAttempts   *int            `json:"max_login_attempts"`
	LoginWindow        *timex.Duration `json:"login_window"`
	MaxRefreshAttempts *int            `json:"max_refresh_attempts"`
	RefreshWindow      *timex.Duration `json:"refresh_window"`
	RedisAddr          *string         `json:"redis_addr"`

	AuditS3AccessKey    *string `json:"audit_s3_access_key"`
	AuditS3SecretKey    *string `json:"audit_s3_secret_key"`
	AuditS3Bucket       *string `json:"audit_s3_bucket"`
	AuditS3Region       *string `json:"audit_s3_region"`
	AuditS3BaseEndpoint *string `json:"audit_s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file given via -c or
// -config. With no flag, nothing is loaded. An unreadable or invalid file
// panics: starting with half a config is worse than not starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != nil {
		config.EndpointAddrHTTP = *c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.TokenIssuer != nil {
		config.TokenIssuer = *c.TokenIssuer
	}
	if c.TokenAudience != nil {
		config.TokenAudience = *c.TokenAudience
	}
	if c.AccessTokenTTL != nil {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.Argon2MemoryKB != nil {
		config.Argon2MemoryKB = *c.Argon2MemoryKB
	}
	if c.Argon2Time != nil {
		config.Argon2Time = *c.Argon2Time
	}
	if c.Argon2Parallelism != nil {
		config.Argon2Parallelism = *c.Argon2Parallelism
	}
	if c.MaxLoginAttempts != nil {
		config.MaxLoginAttempts = *c.MaxLoginAttempts
	}
	if c.LoginWindow != nil {
		config.LoginWindow = c.LoginWindow.Duration
	}
	if c.MaxRefreshAttempts != nil {
		config.MaxRefreshAttempts = *c.MaxRefreshAttempts
	}
	if c.RefreshWindow != nil {
		config.RefreshWindow = c.RefreshWindow.Duration
	}
	if c.RedisAddr != nil {
		config.RedisAddr = *c.RedisAddr
	}
	if c.AuditS3AccessKey != nil {
		config.AuditS3AccessKey = *c.AuditS3AccessKey
	}
	if c.AuditS3SecretKey != nil {
		config.AuditS3SecretKey = *c.AuditS3SecretKey
	}
	if c.AuditS3Bucket != nil {
		config.AuditS3Bucket = *c.AuditS3Bucket
	}
	if c.AuditS3Region != nil {
		config.AuditS3Region = *c.AuditS3Region
	}
	if c.AuditS3BaseEndpoint != nil {
		config.AuditS3BaseEndpoint = *c.AuditS3BaseEndpoint
	}
}
