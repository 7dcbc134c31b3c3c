package backend

import (
	"context"

	"spesa/internal/kv"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the key-value store and an optional cleanup function
type BackendResult struct {
	Store   kv.Store
	Cleanup CleanupFunc
}

// Factory creates key-value stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File backend
	DataDirectory string

	// SQLite backend
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
