package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":     "www.example:9000",
		"database_dsn":           "sessions.db",
		"secret_key":             "my_secret_key",
		"token_issuer":           "issuer",
		"token_audience":         "audience",
		"access_token_ttl":       "1h",
		"refresh_token_ttl":      "720h",
		"argon2_memory_kb":       32768,
		"argon2_time":            4,
		"argon2_parallelism":     1,
		"max_login_attempts":     5,
		"login_window":           "30s",
		"redis_addr":             "redis:6379",
		"audit_s3_access_key":    "user",
		"audit_s3_secret_key":    "password",
		"audit_s3_bucket":        "bucket",
		"audit_s3_region":        "region",
		"audit_s3_base_endpoint": "base_endpoint",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "sessions.db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, "issuer", cfg.TokenIssuer)
		assert.Equal(t, "audience", cfg.TokenAudience)
		assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
		assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
		assert.Equal(t, uint32(32768), cfg.Argon2MemoryKB)
		assert.Equal(t, uint32(4), cfg.Argon2Time)
		assert.Equal(t, uint8(1), cfg.Argon2Parallelism)
		assert.Equal(t, 5, cfg.MaxLoginAttempts)
		assert.Equal(t, 30*time.Second, cfg.LoginWindow)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, "user", cfg.AuditS3AccessKey)
		assert.Equal(t, "password", cfg.AuditS3SecretKey)
		assert.Equal(t, "bucket", cfg.AuditS3Bucket)
		assert.Equal(t, "region", cfg.AuditS3Region)
		assert.Equal(t, "base_endpoint", cfg.AuditS3BaseEndpoint)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP: "defaults:1234",
			DatabaseDSN:      "sessions.db",
			SecretKey:        "key",
			AccessTokenTTL:   2 * time.Minute,
			RefreshTokenTTL:  3 * time.Minute,
			RedisAddr:        "redis:1111",
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "sessions.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenTTL)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenTTL)
		assert.Equal(t, "redis:1111", cfg.RedisAddr)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
