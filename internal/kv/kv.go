// Package kv defines the durable key-value port the item store persists into.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("kv: key not found")

// Store is a durable key-value store holding opaque byte values.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases resources held by the store.
	Close() error
}
