package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spesa/internal/cli"
	apphttp "spesa/internal/http"
	applog "spesa/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)

	cfg, err := cli.LoadAndValidateConfig(nil)
	if err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	sess, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open item store", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("Failed to close item store", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, sess.Store, logger)
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spesa server",
			"port", cfg.Port,
			applog.FieldBackend, cfg.DataBackend,
			applog.FieldItemCount, sess.Store.Len(),
			"amqp_enabled", cfg.AMQPURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
