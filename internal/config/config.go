// Package config loads gateway configuration from an optional YAML file and
// the environment. Environment variables override file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/hupe1980/gatemesh/logging"
	"github.com/hupe1980/gatemesh/metrics"
	"github.com/hupe1980/gatemesh/middleware"
	"github.com/hupe1980/gatemesh/store"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// FileEnv names the environment variable holding the config file path.
const FileEnv = "GATEWAY_CONFIG_FILE"

// Config aggregates every setting of the gateway binary.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Session middleware.Config
	Log     LogConfig
	Metrics MetricsConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// StoreConfig selects and configures the session store.
type StoreConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	// CleanupInterval is how often the memory backend purges expired
	// sessions that were never closed.
	CleanupInterval time.Duration
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  logging.LogLevel
	Format string
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	// Connectors lists the connector names reported as metric labels;
	// empty means the first metrics.DefaultMaxConnectors names seen.
	Connectors []string
}

// fileConfig mirrors the YAML layout:
//
//	server:
//	  addr: ":8080"
//	store:
//	  backend: redis
//	  redis_addr: redis:6379
//	session:
//	  timeout: 300
//	  field_name: session
//	log:
//	  level: debug
//	metrics:
//	  enabled: false
//	  connectors: [sms]
type fileConfig struct {
	Server struct {
		Addr string `json:"addr"`
	} `json:"server"`
	Store struct {
		Backend         string `json:"backend"`
		RedisAddr       string `json:"redis_addr"`
		RedisPassword   string `json:"redis_password"`
		RedisDB         *int   `json:"redis_db"`
		KeyPrefix       string `json:"key_prefix"`
		CleanupInterval string `json:"cleanup_interval"`
	} `json:"store"`
	Session map[string]any `json:"session"`
	Log     struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
	Metrics struct {
		Enabled    *bool    `json:"enabled"`
		Namespace  string   `json:"namespace"`
		Connectors []string `json:"connectors"`
	} `json:"metrics"`
}

// Load reads the file named by GATEWAY_CONFIG_FILE, if set, and applies
// environment overrides.
func Load() (*Config, error) {
	path, _ := lookupEnv(FileEnv)
	return LoadFile(path)
}

// LoadFile reads configuration from the YAML file at path and applies
// environment overrides. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	server, err := loadServerConfig(fc)
	if err != nil {
		return nil, err
	}

	storeCfg, err := loadStoreConfig(fc)
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig(fc)
	if err != nil {
		return nil, err
	}

	log, err := loadLogConfig(fc)
	if err != nil {
		return nil, err
	}

	m, err := loadMetricsConfig(fc)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Store: storeCfg, Session: session, Log: log, Metrics: m}, nil
}

func loadServerConfig(fc fileConfig) (ServerConfig, error) {
	if addr := strings.TrimSpace(os.Getenv("GATEWAY_ADDR")); addr != "" {
		return ServerConfig{Addr: addr}, nil
	}

	port, ok := lookupEnv("PORT")
	if !ok {
		if fc.Server.Addr != "" {
			return ServerConfig{Addr: fc.Server.Addr}, nil
		}
		port = "8080"
	}
	if strings.Contains(port, ":") {
		// allow ":8080" or "127.0.0.1:8080"
		return ServerConfig{Addr: port}, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

func loadStoreConfig(fc fileConfig) (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", orDefault(fc.Store.Backend, BackendMemory)))
	if backend != BackendMemory && backend != BackendRedis {
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q: want %s or %s", backend, BackendMemory, BackendRedis)
	}

	db := 0
	if fc.Store.RedisDB != nil {
		db = *fc.Store.RedisDB
	}
	if v, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return StoreConfig{}, err
	} else if v != nil {
		db = *v
	}

	raw := getEnvOrDefault("STORE_CLEANUP_INTERVAL", fc.Store.CleanupInterval)
	cleanup := store.DefaultCleanupInterval
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return StoreConfig{}, fmt.Errorf("invalid STORE_CLEANUP_INTERVAL value %q: %w", raw, err)
		}
		if d <= 0 {
			return StoreConfig{}, fmt.Errorf("invalid STORE_CLEANUP_INTERVAL value %q: must be positive", raw)
		}
		cleanup = d
	}

	return StoreConfig{
		Backend:         backend,
		RedisAddr:       getEnvOrDefault("REDIS_ADDR", orDefault(fc.Store.RedisAddr, "localhost:6379")),
		RedisPassword:   getEnvOrDefault("REDIS_PASSWORD", fc.Store.RedisPassword),
		RedisDB:         db,
		KeyPrefix:       getEnvOrDefault("REDIS_KEY_PREFIX", fc.Store.KeyPrefix),
		CleanupInterval: cleanup,
	}, nil
}

func loadSessionConfig(fc fileConfig) (middleware.Config, error) {
	raw := make(map[string]any, len(fc.Session))
	for k, v := range fc.Session {
		raw[k] = v
	}
	if v, ok := lookupEnv("SESSION_TIMEOUT"); ok {
		raw["timeout"] = v
	}
	if v, ok := lookupEnv("SESSION_FIELD_NAME"); ok {
		raw["field_name"] = v
	}
	cfg, err := middleware.ConfigFromMap(raw)
	if err != nil {
		return middleware.Config{}, fmt.Errorf("invalid session config: %w", err)
	}
	return cfg, nil
}

func loadLogConfig(fc fileConfig) (LogConfig, error) {
	level, err := logging.ParseLevel(getEnvOrDefault("LOG_LEVEL", fc.Log.Level))
	if err != nil {
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value: %w", err)
	}
	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", orDefault(fc.Log.Format, "json")))
	if format != "json" && format != "text" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}
	return LogConfig{Level: level, Format: format}, nil
}

func loadMetricsConfig(fc fileConfig) (MetricsConfig, error) {
	enabled := true
	if fc.Metrics.Enabled != nil {
		enabled = *fc.Metrics.Enabled
	}
	if v, ok := lookupEnv("METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return MetricsConfig{}, fmt.Errorf("invalid METRICS_ENABLED value %q: %w", v, err)
		}
		enabled = b
	}
	connectors := fc.Metrics.Connectors
	if v, ok := lookupEnv("METRICS_CONNECTORS"); ok {
		connectors = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				connectors = append(connectors, name)
			}
		}
	}
	return MetricsConfig{
		Enabled:    enabled,
		Namespace:  getEnvOrDefault("METRICS_NAMESPACE", orDefault(fc.Metrics.Namespace, metrics.DefaultNamespace)),
		Connectors: connectors,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return defaultValue
}

func lookupEnv(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

func parseOptionalIntEnv(key string) (*int, error) {
	value, ok := lookupEnv(key)
	if !ok {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
