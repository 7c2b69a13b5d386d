package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/cli"
	apphttp "expenses/internal/http"
	applog "expenses/internal/log"
	"expenses/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	repo := cli.InitSQLite(ctx, logger, cfg)

	// Publishing is optional. The interface stays nil when disabled.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		publisher = client
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewExpenseService(repo, publisher, cfg.SummaryCacheTTL)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close expense service", applog.FieldError, err)
		}
	}()

	caches := cache.NewManager()
	caches.Register(svc.SummaryCache())
	caches.StartCleanup(cfg.SummaryCacheTTL)
	defer caches.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:       logger,
		DefaultLimit: cfg.DefaultQueryLimit,
		RecentLimit:  cfg.RecentLimit,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expenses server",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port,
			"debug", cfg.Debug)
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
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}

	m := srv.Metrics()
	logger.Info("Server stopped gracefully",
		applog.FieldOperation, applog.OpShutdown,
		"requests", m.Trace.TotalRequests,
		"rate_limited", m.RateLimit.Rejected)
}
