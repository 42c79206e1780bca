// Package redis provides a core.KVStore backed by Redis. Session records
// written by one gateway worker are visible to every other worker sharing the
// same Redis, and key expiry is enforced by the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/gatemesh/core"
	goredis "github.com/redis/go-redis/v9"
)

// Config describes how to reach a Redis server.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Options configures a Store.
type Options struct {
	// KeyPrefix is prepended to every key, letting several gateways share a
	// database without colliding.
	KeyPrefix string
}

// Store implements core.KVStore on top of a go-redis client.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// New wraps an existing client.
func New(client goredis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, prefix: opts.KeyPrefix}
}

// NewFromConfig dials a single-node client described by cfg.
func NewFromConfig(cfg Config) *Store {
	client := goredis.NewClient(&goredis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return New(client, func(o *Options) { o.KeyPrefix = cfg.KeyPrefix })
}

// Set issues SET with an EX/PX expiry when expire > 0.
func (s *Store) Set(ctx context.Context, key, value string, expire time.Duration) error {
	if expire < 0 {
		expire = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, expire).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Get issues GET; a missing key is reported as absent, not as an error.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

// Delete issues DEL.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// TTL issues TTL. Redis answers -2 for missing keys and -1 for keys without
// expiry.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := s.client.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis ttl %q: %w", key, err)
	}
	switch ttl {
	case -2:
		return 0, false, nil
	case -1:
		return core.NoExpiry, true, nil
	}
	return ttl, true, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}
