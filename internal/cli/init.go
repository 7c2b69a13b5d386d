// Package cli holds the start-up steps shared by cmd/expenses and
// cmd/expenses-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

// SetupLogger builds the process logger at the given level and installs it
// as the slog default. An unknown level falls back to info.
func SetupLogger(level, component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	lvl, err := config.ParseLevel(level)
	if err == nil {
		cfg.Level = lvl
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenRepository opens the configured database. In debug mode it opens a
// private in-memory database loaded with the sample expenses.
func OpenRepository(ctx context.Context, cfg *config.Config) (*storage.SQLiteRepository, error) {
	path := cfg.SQLiteDBPath
	if cfg.Debug {
		path = storage.MemoryPath
	}
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %q: %w", path, err)
	}
	if cfg.Debug {
		if _, err := repo.Seed(ctx); err != nil {
			repo.Close()
			return nil, err
		}
	}
	return repo, nil
}

// ErrPrivateDatabase is returned when a process that must share the
// database with the server is started in debug mode.
var ErrPrivateDatabase = errors.New("debug mode uses a private in-memory database that other processes cannot see")

// RequireSharedDatabase rejects configurations where the database would be
// private to this process.
func RequireSharedDatabase(cfg *config.Config) error {
	if cfg.Debug {
		return ErrPrivateDatabase
	}
	return nil
}

// InitSQLite is OpenRepository that exits the process on failure.
func InitSQLite(ctx context.Context, logger *applog.Logger, cfg *config.Config) *storage.SQLiteRepository {
	repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath, "debug", cfg.Debug)
		os.Exit(1)
	}
	return repo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown requested", applog.FieldOperation, applog.OpShutdown)
	}()
	return ctx, stop
}
