package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"

	_ "modernc.org/sqlite"
)

const (
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	DefaultLimit       = 100
	DefaultRecentLimit = 10
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries

	mu     sync.RWMutex
	lookup *TagLookup
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dsn := dbPath
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = dbPath + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == MemoryPath {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	if err := repo.refreshLookup(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Lookup returns the current tag lookup tables.
func (r *SQLiteRepository) Lookup() *TagLookup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup
}

func (r *SQLiteRepository) refreshLookup(ctx context.Context) error {
	tags, err := r.queries.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("build tag lookup: %w", err)
	}
	l := newTagLookup(tags)

	r.mu.Lock()
	r.lookup = l
	r.mu.Unlock()

	applog.For(ctx, applog.ComponentStorage).DebugContext(ctx, "Tag lookup rebuilt", "tags", l.Len())
	return nil
}

// AddExpense stores e with its tags and returns it with the assigned id.
// Unknown tags are added to the catalogue.
func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Tags = core.NormalizeTagList(e.Tags)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	id, err := qtx.CreateExpense(ctx, CreateExpenseParams{
		Date: e.Date.String(),
		Name: e.Name,
		Cost: e.Cost.Yen,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	tags, created, err := r.attachTags(ctx, qtx, id, e.Tags)
	if err != nil {
		return core.Expense{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	if created {
		if err := r.refreshLookup(ctx); err != nil {
			return core.Expense{}, err
		}
	}

	e.ID = id
	e.Tags = tags

	applog.For(ctx, applog.ComponentStorage).InfoContext(ctx, "Expense saved to SQLite", applog.NewFields().
		WithOperation(applog.OpCreate).
		WithExpense(id, e.Name, e.Cost.Yen, core.JoinTags(tags)).
		ToSlice()...)

	return e, nil
}

// attachTags links expenseID to each tag, creating missing tags. It
// returns the canonical tag names and whether any tag was created.
func (r *SQLiteRepository) attachTags(ctx context.Context, qtx *Queries, expenseID int64, names []string) ([]string, bool, error) {
	lookup := r.Lookup()
	created := false
	out := make([]string, 0, len(names))

	for _, name := range core.NormalizeTagList(names) {
		tagID, ok := lookup.ID(name)
		canonical, _ := lookup.Name(tagID)
		if !ok {
			if err := qtx.CreateTag(ctx, name); err != nil {
				return nil, false, fmt.Errorf("create tag %q: %w", name, err)
			}
			tag, err := qtx.GetTagByName(ctx, name)
			if err != nil {
				return nil, false, fmt.Errorf("get tag %q: %w", name, err)
			}
			tagID, canonical, created = tag.ID, tag.Name, true
		}
		if err := qtx.InsertExpenseTag(ctx, expenseID, tagID); err != nil {
			return nil, false, fmt.Errorf("tag expense %d with %q: %w", expenseID, name, err)
		}
		out = append(out, canonical)
	}

	return out, created, nil
}

// RemoveExpense deletes the expense and its tag links.
func (r *SQLiteRepository) RemoveExpense(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	if err := qtx.DeleteExpenseTags(ctx, id); err != nil {
		return fmt.Errorf("delete expense tags: %w", err)
	}
	n, err := qtx.DeleteExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete expense %d: %w", id, core.ErrExpenseNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	applog.For(ctx, applog.ComponentStorage).InfoContext(ctx, "Expense removed from SQLite",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id)
	return nil
}

// UpdateTags replaces the tag set of an expense.
func (r *SQLiteRepository) UpdateTags(ctx context.Context, id int64, tags []string) (core.Expense, error) {
	for _, t := range core.NormalizeTagList(tags) {
		if err := (core.Tag{Name: t}).Validate(); err != nil {
			return core.Expense{}, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	if _, err := qtx.GetExpense(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, fmt.Errorf("update tags of %d: %w", id, core.ErrExpenseNotFound)
		}
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	if err := qtx.DeleteExpenseTags(ctx, id); err != nil {
		return core.Expense{}, fmt.Errorf("delete expense tags: %w", err)
	}
	names, created, err := r.attachTags(ctx, qtx, id, tags)
	if err != nil {
		return core.Expense{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit tags: %w", err)
	}

	if created {
		if err := r.refreshLookup(ctx); err != nil {
			return core.Expense{}, err
		}
	}

	applog.For(ctx, applog.ComponentStorage).InfoContext(ctx, "Expense tags updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldExpenseID, id,
		applog.FieldTags, core.JoinTags(names))
	return r.GetExpense(ctx, id)
}

// GetExpense retrieves a single expense by ID
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, fmt.Errorf("get expense %d: %w", id, core.ErrExpenseNotFound)
		}
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return r.toCore(ctx, row)
}

// ListExpenses returns every expense in insertion order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return r.toCoreList(ctx, rows)
}

// ListRecent returns the newest expenses first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.queries.ListRecentExpenses(ctx, limitOr(limit, DefaultRecentLimit))
	if err != nil {
		return nil, fmt.Errorf("list recent expenses: %w", err)
	}
	return r.toCoreList(ctx, rows)
}

// ListByCost returns expenses ordered from the most to the least expensive.
func (r *SQLiteRepository) ListByCost(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByCost(ctx, limitOr(limit, DefaultLimit))
	if err != nil {
		return nil, fmt.Errorf("list expenses by cost: %w", err)
	}
	return r.toCoreList(ctx, rows)
}

// ListOver returns expenses costing strictly more than threshold.
func (r *SQLiteRepository) ListOver(ctx context.Context, threshold int64, limit int) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesOver(ctx, ListExpensesOverParams{
		Threshold: threshold,
		Limit:     limitOr(limit, DefaultLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses over %d: %w", threshold, err)
	}
	return r.toCoreList(ctx, rows)
}

// ListByTag returns expenses carrying tag. Names are matched through the
// lookup, ignoring case, so matching agrees with how tags are attached.
func (r *SQLiteRepository) ListByTag(ctx context.Context, tag string, limit int) ([]core.Expense, error) {
	names := core.NormalizeTags(tag)
	if len(names) != 1 {
		return nil, core.ErrInvalidTag
	}

	tagID, ok := r.Lookup().ID(names[0])
	if !ok {
		// Another process sharing the file may have added the tag.
		if err := r.refreshLookup(ctx); err != nil {
			return nil, err
		}
		if tagID, ok = r.Lookup().ID(names[0]); !ok {
			return []core.Expense{}, nil
		}
	}

	rows, err := r.queries.ListExpensesByTag(ctx, ListExpensesByTagParams{
		TagID: tagID,
		Limit: limitOr(limit, DefaultLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses by tag %q: %w", names[0], err)
	}
	return r.toCoreList(ctx, rows)
}

// ListByMonth returns the expenses dated within the given calendar month.
func (r *SQLiteRepository) ListByMonth(ctx context.Context, year, month int) ([]core.Expense, error) {
	from, until, err := core.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	rows, err := r.queries.ListExpensesBetween(ctx, ListExpensesBetweenParams{
		From:  from.String(),
		Until: until.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses for %04d-%02d: %w", year, month, err)
	}
	return r.toCoreList(ctx, rows)
}

// Total returns the sum of all costs; zero when there are no expenses.
func (r *SQLiteRepository) Total(ctx context.Context) (core.Money, error) {
	total, err := r.queries.TotalCost(ctx)
	if err != nil {
		return core.Money{}, fmt.Errorf("get total cost: %w", err)
	}
	return core.Money{Yen: total}, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// DistinctTags returns the names of tags attached to at least one expense.
func (r *SQLiteRepository) DistinctTags(ctx context.Context) ([]string, error) {
	names, err := r.queries.ListUsedTagNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list used tags: %w", err)
	}
	return names, nil
}

// ListTags returns the whole tag catalogue.
func (r *SQLiteRepository) ListTags(ctx context.Context) ([]core.Tag, error) {
	rows, err := r.queries.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	tags := make([]core.Tag, len(rows))
	for i, t := range rows {
		tags[i] = core.Tag{ID: t.ID, Name: t.Name}
	}
	return tags, nil
}

// TagTotals returns per-tag spending, largest first.
func (r *SQLiteRepository) TagTotals(ctx context.Context) ([]core.TagTotal, error) {
	rows, err := r.queries.ListTagTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tag totals: %w", err)
	}
	totals := make([]core.TagTotal, len(rows))
	for i, row := range rows {
		totals[i] = core.TagTotal{
			Name:  row.Name,
			Count: row.Count,
			Total: core.Money{Yen: row.Total},
		}
	}
	return totals, nil
}

func (r *SQLiteRepository) toCoreList(ctx context.Context, rows []Expense) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := r.toCore(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// toCore converts a row into a core.Expense, resolving its tags through
// the lookup tables.
func (r *SQLiteRepository) toCore(ctx context.Context, row Expense) (core.Expense, error) {
	date, err := time.Parse(core.DateLayout, row.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse date %q of expense %d: %w", row.Date, row.ID, err)
	}

	tagIDs, err := r.queries.ListExpenseTagIDs(ctx, row.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("list tags of expense %d: %w", row.ID, err)
	}

	tags, err := r.tagNames(ctx, tagIDs)
	if err != nil {
		return core.Expense{}, err
	}

	return core.Expense{
		ID:   row.ID,
		Date: core.Date{Time: date},
		Name: row.Name,
		Cost: core.Money{Yen: row.Cost},
		Tags: tags,
	}, nil
}

func (r *SQLiteRepository) tagNames(ctx context.Context, ids []int64) ([]string, error) {
	names := make([]string, 0, len(ids))
	lookup := r.Lookup()
	for _, id := range ids {
		name, ok := lookup.Name(id)
		if !ok {
			// Another process sharing the file may have added the tag.
			if err := r.refreshLookup(ctx); err != nil {
				return nil, err
			}
			lookup = r.Lookup()
			if name, ok = lookup.Name(id); !ok {
				return nil, fmt.Errorf("unknown tag id %d", id)
			}
		}
		names = append(names, name)
	}
	return names, nil
}

func limitOr(limit, def int) int64 {
	if limit <= 0 {
		return int64(def)
	}
	return int64(limit)
}
