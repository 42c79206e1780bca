package middleware

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is returned for middleware configuration that cannot be
// resolved.
var ErrInvalidConfig = fmt.Errorf("invalid middleware config")

// Config holds the options a host passes to SessionLength.
type Config struct {
	// Timeout is the lifetime of a session record in seconds.
	Timeout int
	// FieldName is the helper metadata field the timestamps are written to.
	FieldName string
}

// MaxTimeout is the largest timeout, in seconds, that fits a time.Duration.
const MaxTimeout = math.MaxInt64 / int64(time.Second)

// DefaultConfig mirrors the defaults of the session length middleware.
var DefaultConfig = Config{
	Timeout:   120,
	FieldName: "session",
}

func (c Config) withDefaults() (Config, error) {
	if c.Timeout < 0 {
		return c, fmt.Errorf("%w: timeout must be positive, got %d", ErrInvalidConfig, c.Timeout)
	}
	if int64(c.Timeout) > MaxTimeout {
		return c, fmt.Errorf("%w: timeout must be at most %d seconds, got %d", ErrInvalidConfig, MaxTimeout, c.Timeout)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultConfig.Timeout
	}
	if c.FieldName == "" {
		c.FieldName = DefaultConfig.FieldName
	}
	return c, nil
}

// ConfigFromMap resolves raw middleware options, as found in a gateway's
// middleware configuration, into a Config. Missing options fall back to
// DefaultConfig.
func ConfigFromMap(raw map[string]any) (Config, error) {
	cfg := DefaultConfig
	if v, ok := raw["timeout"]; ok {
		timeout, err := parseTimeout(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Timeout = timeout
	}
	if v, ok := raw["field_name"]; ok {
		name, isString := v.(string)
		if !isString || strings.TrimSpace(name) == "" {
			return Config{}, fmt.Errorf("%w: field_name must be a non-empty string, got %v", ErrInvalidConfig, v)
		}
		cfg.FieldName = name
	}
	return cfg, nil
}

func parseTimeout(v any) (int, error) {
	var timeout int64
	switch t := v.(type) {
	case int:
		timeout = int64(t)
	case int32:
		timeout = int64(t)
	case int64:
		timeout = t
	case uint:
		if uint64(t) > uint64(MaxTimeout) {
			return 0, fmt.Errorf("%w: timeout must be at most %d seconds, got %d", ErrInvalidConfig, MaxTimeout, t)
		}
		timeout = int64(t)
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: timeout must be a whole number of seconds, got %v", ErrInvalidConfig, t)
		}
		if t > float64(MaxTimeout) {
			return 0, fmt.Errorf("%w: timeout must be at most %d seconds, got %v", ErrInvalidConfig, MaxTimeout, t)
		}
		timeout = int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid timeout %q: %v", ErrInvalidConfig, t, err)
		}
		timeout = n
	default:
		return 0, fmt.Errorf("%w: timeout must be an integer, got %T", ErrInvalidConfig, v)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("%w: timeout must be positive, got %d", ErrInvalidConfig, timeout)
	}
	if timeout > MaxTimeout {
		return 0, fmt.Errorf("%w: timeout must be at most %d seconds, got %d", ErrInvalidConfig, MaxTimeout, timeout)
	}
	return int(timeout), nil
}
