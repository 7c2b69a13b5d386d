package sheets

import (
	"context"

	"expenses/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseExporter mirrors stored expenses into an external sheet keyed by
	// expense id. Both operations are idempotent.
	ExpenseExporter interface {
		Upsert(ctx context.Context, e core.Expense) (rowRef string, err error)
		Delete(ctx context.Context, id int64) error
	}

	// BulkExporter upserts many expenses in few calls. It returns how many
	// were written before any error.
	BulkExporter interface {
		UpsertAll(ctx context.Context, expenses []core.Expense) (int, error)
	}
)
