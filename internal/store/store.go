// Package store wraps the coordination key/value store (Redis) with the
// small set of primitives the core components need: string get/set with
// TTL, delete, and atomic counter increments. Every get, set, delete and
// increment method translates a transport or command error into
// ErrUnavailable (Ping and Close return the underlying error) so callers can
// apply the
// "degrade, don't fail" policy from spec.md §7 without importing redis
// types directly.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrUnavailable signals the coordination store could not service a call
// within its deadline. Callers treat this as "record absent" / "write
// dropped", never as a caller-visible failure.
var ErrUnavailable = errors.New("store: unavailable")

// ErrNotFound signals the key does not exist (and the store itself is fine).
var ErrNotFound = errors.New("store: not found")

// Store is a minimal coordination-store client.
type Store struct {
	rdb *redis.Client
}

// Config holds the dial parameters for the coordination store.
type Config struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// DefaultConfig matches spec.md §5: 2000ms connect, 1000ms command.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 2000 * time.Millisecond,
		CommandTimeout: 1000 * time.Millisecond,
	}
}

// New builds a Store from a redis:// connection string.
func New(connectionString string, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = cfg.ConnectTimeout
	opts.ReadTimeout = cfg.CommandTimeout
	opts.WriteTimeout = cfg.CommandTimeout
	return &Store{rdb: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an already-constructed redis client (used by tests
// against miniredis, and anywhere the caller wants its own pool settings).
func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// GetString reads a key. Returns ErrNotFound if absent, ErrUnavailable on
// any store-side failure.
func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", ErrUnavailable
	}
	return v, nil
}

// SetStringTTL writes a key with the given TTL. Errors are ErrUnavailable.
func (s *Store) SetStringTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}

// Delete removes one or more keys. Errors are ErrUnavailable.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}

// IncrBy atomically increments an integer counter and returns the new value.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := s.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, ErrUnavailable
	}
	return v, nil
}

// IncrByFloat atomically increments a float counter and returns the new value.
func (s *Store) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	v, err := s.rdb.IncrByFloat(ctx, key, delta).Result()
	if err != nil {
		return 0, ErrUnavailable
	}
	return v, nil
}

// GetFloat reads a counter key as a float64, treating an absent key as zero.
func (s *Store) GetFloat(ctx context.Context, key string) (float64, error) {
	v, err := s.GetString(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, ErrUnavailable
	}
	return f, nil
}

// GetInt reads a counter key as an int64, treating an absent key as zero.
func (s *Store) GetInt(ctx context.Context, key string) (int64, error) {
	v, err := s.GetString(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, ErrUnavailable
	}
	return n, nil
}

// Close releases the underlying redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
