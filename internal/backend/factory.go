// Package backend picks the sheet exporter the worker mirrors expenses into.
package backend

import (
	"context"
	"fmt"

	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/sheets"
	gsheet "expenses/internal/sheets/google"
	"expenses/internal/sheets/memory"
)

// BackendType represents the available export backends
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	}
	return false
}

// Config selects and configures an exporter.
type Config struct {
	Type  BackendType
	Sheet gsheet.Options
}

// FromAppConfig converts the application config to backend config. An unset
// backend means sheets when a spreadsheet is configured, memory otherwise.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := BackendType(appConfig.ExportBackend)
	if t == "" {
		t = MemoryBackend
		if appConfig.GoogleSpreadsheetID != "" {
			t = SheetsBackend
		}
	}
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid export backend: %s", t)
	}

	return Config{
		Type: t,
		Sheet: gsheet.Options{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},
	}, nil
}

// NewExporter builds the exporter described by cfg.
func NewExporter(ctx context.Context, cfg Config) (sheets.ExpenseExporter, error) {
	switch cfg.Type {
	case SheetsBackend:
		client, err := gsheet.New(ctx, cfg.Sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Initialized Google Sheets exporter",
			applog.FieldOperation, applog.OpStartup,
			"spreadsheet_id", cfg.Sheet.SpreadsheetID)
		return client, nil
	case MemoryBackend:
		applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Initialized memory exporter",
			applog.FieldOperation, applog.OpStartup)
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
