// Package session keeps server-side login state keyed by an opaque session
// cookie. Values live in a Backend: go-cache for single-instance deployments
// and Redis when several instances share sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Backend.Get for a missing or expired key.
	ErrNotFound = errors.New("session: key not found")

	ErrUnknownDriver = errors.New("session: unknown backend driver")
)

// Backend is a string key/value store with per-key expiry.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)

	// Set stores value; ttl <= 0 means the backend default.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}

// BackendConfig selects and configures a Backend.
type BackendConfig struct {
	Driver     string // "memory" | "redis"
	RedisAddr  string
	RedisDB    int
	RedisPass  string
	Prefix     string        // Prepended to every key
	DefaultTTL time.Duration // Used when Set is called without a ttl
}

// NewBackend builds the configured backend.
func NewBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("session: redis address is required")
		}
		return NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.Prefix, cfg.DefaultTTL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
