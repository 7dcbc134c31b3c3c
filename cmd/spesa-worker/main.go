package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"spesa/internal/amqp"
	"spesa/internal/cli"
	"spesa/internal/config"
	applog "spesa/internal/log"
	gsheet "spesa/internal/sheets/google"
	"spesa/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	logger.Info("Starting spesa-worker")

	cfg, err := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	if err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer func() { _ = res.Cleanup() }()
	}

	exporter, err := gsheet.NewFromEnv(ctx, logger)
	if err != nil {
		return err
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewExportWorker(res.Store, cfg.StorageKey, exporter, logger)

	// Catch up on changes made while the worker was down.
	if _, err := w.ExportIfChanged(ctx); err != nil {
		logger.Error("Startup export failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Consume(gctx, w.HandleItemsChanged) })
	g.Go(func() error { return w.Run(gctx, cfg.ExportInterval) })
	return g.Wait()
}
