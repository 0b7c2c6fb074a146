// Package kv provides the durable named slots the diary stores mirror their state into.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrSlotNotFound is returned by Get when nothing was ever written to a slot.
var ErrSlotNotFound = errors.New("kv: slot not found")

// Slot names used by the diary stores.
const (
	SlotEntries = "health-diary-entries"
	SlotFamily  = "health-diary-family"
)

// Slots is a small key-value store; each key holds one opaque payload.
type Slots interface {
	// Get returns the payload of key or ErrSlotNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put overwrites the payload of key.
	Put(ctx context.Context, key string, value []byte) error
	// Close releases underlying resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures a Slots backend.
type Config struct {
	Backend   string
	Path      string // directory for file, database file for sqlite
	RedisAddr string
	RedisDB   int
}

// Open constructs the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Slots, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFile(cfg.Path)
	case BackendSQLite:
		return NewSQLite(ctx, cfg.Path)
	case BackendRedis:
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", cfg.Backend)
	}
}
