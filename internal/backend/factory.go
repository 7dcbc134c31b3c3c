package backend

import (
	"context"
	"fmt"

	"spesa/internal/kv/file"
	"spesa/internal/kv/memory"
	applog "spesa/internal/log"
	"spesa/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case FileBackend:
		return f.createFileBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath, "schema_version", repo.SchemaVersion())

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createFileBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := file.New(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized file backend", "data_directory", config.DataDirectory)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	f.logger.WarnContext(ctx, "Initialized memory backend, items will not survive a restart")

	return &BackendResult{
		Store:   memory.New(),
		Cleanup: nil,
	}, nil
}
