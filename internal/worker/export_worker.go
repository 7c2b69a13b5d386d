package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/sheets"
	"expenses/internal/storage"
)

// ExportWorker mirrors the local expense store into a sheet.
type ExportWorker struct {
	storage  *storage.SQLiteRepository
	exporter sheets.ExpenseExporter
}

func NewExportWorker(storage *storage.SQLiteRepository, exporter sheets.ExpenseExporter) *ExportWorker {
	return &ExportWorker{
		storage:  storage,
		exporter: exporter,
	}
}

// HandleEvent processes a single expense event from AMQP. Events carry only
// the id, so the current row is read from storage.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	logger := applog.For(ctx, applog.ComponentWorker).With(applog.FieldExpenseID, ev.ID)
	logger.InfoContext(ctx, "Processing expense event", "type", ev.Type)

	switch ev.Type {
	case amqp.EventExpenseCreated, amqp.EventExpenseTagsUpdated:
		e, err := w.storage.GetExpense(ctx, ev.ID)
		if errors.Is(err, core.ErrExpenseNotFound) {
			// Removed after the event was published; the delete event follows.
			logger.WarnContext(ctx, "Skipping export of removed expense")
			return nil
		}
		if err != nil {
			return fmt.Errorf("get expense from storage: %w", err)
		}
		ref, err := w.exporter.Upsert(ctx, e)
		if err != nil {
			return fmt.Errorf("export expense %d: %w", ev.ID, err)
		}
		logger.InfoContext(ctx, "Exported expense", applog.FieldOperation, applog.OpExport, "ref", ref)
		return nil

	case amqp.EventExpenseDeleted:
		if err := w.exporter.Delete(ctx, ev.ID); err != nil {
			return fmt.Errorf("delete exported expense %d: %w", ev.ID, err)
		}
		logger.InfoContext(ctx, "Deleted exported expense", applog.FieldOperation, applog.OpDelete)
		return nil

	default:
		return fmt.Errorf("unsupported event type %q", ev.Type)
	}
}

// BackfillResult summarizes a backfill pass.
type BackfillResult struct {
	Total    int
	Exported int
	Failed   int
	Elapsed  time.Duration
}

// Backfill exports every stored expense. It recovers from missed AMQP
// messages and worker downtime. Exporters that support bulk writes get the
// whole list at once; otherwise individual failures are logged and counted.
func (w *ExportWorker) Backfill(ctx context.Context) (BackfillResult, error) {
	start := time.Now()
	logger := applog.For(ctx, applog.ComponentWorker).With(applog.FieldOperation, applog.OpBackfill)

	all, err := w.storage.ListExpenses(ctx)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("list expenses for backfill: %w", err)
	}

	res := BackfillResult{Total: len(all)}
	if bulk, ok := w.exporter.(sheets.BulkExporter); ok {
		n, err := bulk.UpsertAll(ctx, all)
		res.Exported, res.Failed = n, len(all)-n
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			logger.ErrorContext(ctx, "Bulk export failed", applog.FieldError, err)
		}
	} else {
		for _, e := range all {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if _, err := w.exporter.Upsert(ctx, e); err != nil {
				logger.ErrorContext(ctx, "Failed to export expense during backfill",
					applog.FieldExpenseID, e.ID,
					applog.FieldError, err)
				res.Failed++
				continue
			}
			res.Exported++
		}
	}
	res.Elapsed = time.Since(start)

	logger.InfoContext(ctx, "Backfill completed",
		"total", res.Total,
		"exported", res.Exported,
		"failed", res.Failed,
		"elapsed", res.Elapsed)

	return res, nil
}
