package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/cli"
	applog "expenses/internal/log"
	"expenses/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if err := cli.RequireSharedDatabase(cfg); err != nil {
		logger.Error("Worker cannot run in debug mode", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting expenses-worker", applog.FieldOperation, applog.OpStartup)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	repo := cli.InitSQLite(ctx, logger, cfg)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend", applog.FieldError, err)
		os.Exit(1)
	}
	exporter, err := backend.NewExporter(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", applog.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(repo, exporter)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeExpenseEvents(gctx, exportWorker.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic backfill")
	}

	// Backfill at startup and on every tick, covering missed messages.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()
		for {
			if _, err := exportWorker.Backfill(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Backfill failed", applog.FieldError, err)
			}
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
