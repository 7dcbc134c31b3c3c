// Package cli provides the spesa command line and the initialization steps
// shared by cmd/spesa, cmd/spesa-worker and cmd/spesa-cli.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spesa/internal/amqp"
	"spesa/internal/backend"
	"spesa/internal/config"
	applog "spesa/internal/log"
	"spesa/internal/store"
)

// SetupLogger builds the process logger at the given LOG_LEVEL and makes it
// the slog default.
func SetupLogger(level string, out io.Writer) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	if out != nil {
		cfg.Output = out
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and runs validate over it. A nil
// validate uses Config.Validate.
func LoadAndValidateConfig(validate func(*config.Config) error) (*config.Config, error) {
	cfg := config.Load()
	if validate == nil {
		validate = (*config.Config).Validate
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackend creates the key-value store selected by DATA_BACKEND.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// Session is an open ItemStore plus the resources behind it.
type Session struct {
	Store *store.ItemStore
	close []func() error
}

// Close releases the session resources in reverse order of acquisition.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.close) - 1; i >= 0; i-- {
		if err := s.close[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// changeQueueSize bounds the changes waiting to be published.
const changeQueueSize = 256

// OpenStore opens the configured backend and loads the item store over it.
// When AMQP_URL is set, every committed mutation is also published from a
// background queue. A broker that cannot be reached disables publishing
// instead of failing.
func OpenStore(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*Session, error) {
	res, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	sess := &Session{}
	if res.Cleanup != nil {
		sess.close = append(sess.close, res.Cleanup)
	}

	opts := []store.Option{store.WithKey(cfg.StorageKey), store.WithLogger(logger)}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.WarnContext(ctx, "AMQP unavailable, change events disabled", applog.FieldError, err)
		} else {
			publisher := store.NewAsyncObserver(client, changeQueueSize, logger)
			opts = append(opts, store.WithObserver(publisher))
			// Closed in reverse: the queue drains before the connection goes.
			sess.close = append(sess.close, client.Close, publisher.Close)
		}
	}

	sess.Store = store.Open(ctx, res.Store, opts...)
	return sess, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
