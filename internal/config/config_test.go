package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/gatemesh/logging"
	"github.com/hupe1980/gatemesh/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"GATEWAY_ADDR", "PORT", "STORE_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"REDIS_KEY_PREFIX", "STORE_CLEANUP_INTERVAL", "SESSION_TIMEOUT", "SESSION_FIELD_NAME", "LOG_LEVEL", "LOG_FORMAT",
	"METRICS_ENABLED", "METRICS_NAMESPACE", "METRICS_CONNECTORS", FileEnv,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
	assert.Equal(t, time.Minute, cfg.Store.CleanupInterval)
	assert.Equal(t, middleware.DefaultConfig, cfg.Session)
	assert.Equal(t, logging.LogLevelInfo, cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, MetricsConfig{Enabled: true, Namespace: "gatemesh"}, cfg.Metrics)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_KEY_PREFIX", "gw")
	t.Setenv("STORE_CLEANUP_INTERVAL", "15s")
	t.Setenv("SESSION_TIMEOUT", "20")
	t.Setenv("SESSION_FIELD_NAME", "foobar")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, StoreConfig{Backend: BackendRedis, RedisAddr: "redis:6379", RedisDB: 2, KeyPrefix: "gw", CleanupInterval: 15 * time.Second}, cfg.Store)
	assert.Equal(t, middleware.Config{Timeout: 20, FieldName: "foobar"}, cfg.Session)
	assert.Equal(t, logging.LogLevelDebug, cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestGatewayAddrWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("GATEWAY_ADDR", "0.0.0.0:7000")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.Server.Addr)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"PORT":                   "80 80",
		"STORE_BACKEND":          "etcd",
		"REDIS_DB":               "zero",
		"STORE_CLEANUP_INTERVAL": "-1s",
		"SESSION_TIMEOUT":        "two minutes",
		"LOG_LEVEL":              "loud",
		"LOG_FORMAT":             "xml",
		"METRICS_ENABLED":        "sometimes",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSessionTimeoutRejectsNonPositive(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_TIMEOUT", "-3")

	_, err := Load()
	assert.ErrorIs(t, err, middleware.ErrInvalidConfig)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleFile = `
server:
  addr: ":9090"
store:
  backend: redis
  redis_addr: redis:6379
  redis_db: 3
  key_prefix: gw
  cleanup_interval: 30s
session:
  timeout: 300
  field_name: ussd_session
log:
  level: warn
  format: text
metrics:
  enabled: false
  namespace: edge
  connectors: [sms, ussd]
`

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(writeConfigFile(t, sampleFile))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, StoreConfig{Backend: BackendRedis, RedisAddr: "redis:6379", RedisDB: 3, KeyPrefix: "gw", CleanupInterval: 30 * time.Second}, cfg.Store)
	assert.Equal(t, middleware.Config{Timeout: 300, FieldName: "ussd_session"}, cfg.Session)
	assert.Equal(t, LogConfig{Level: logging.LogLevelWarn, Format: "text"}, cfg.Log)
	assert.Equal(t, MetricsConfig{Enabled: false, Namespace: "edge", Connectors: []string{"sms", "ussd"}}, cfg.Metrics)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, writeConfigFile(t, sampleFile))
	t.Setenv("PORT", "7000")
	t.Setenv("SESSION_TIMEOUT", "45")
	t.Setenv("REDIS_DB", "0")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("METRICS_CONNECTORS", " whatsapp, ,sms ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 0, cfg.Store.RedisDB)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, middleware.Config{Timeout: 45, FieldName: "ussd_session"}, cfg.Session)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"whatsapp", "sms"}, cfg.Metrics.Connectors)
}

func TestLoadFileInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":       "sever:\n  addr: \":1\"\n",
		"fractional":        "session:\n  timeout: 1.5\n",
		"empty field name":  "session:\n  field_name: \"\"\n",
		"not yaml":          "session: [",
		"bad store backend": "store:\n  backend: etcd\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadFile(writeConfigFile(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
