package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

const (
	summaryKey = "summary"
	// summaryAttempts bounds recomputation when writes keep interleaving.
	summaryAttempts = 3
)

// EventPublisher announces expense changes to downstream consumers.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, t amqp.EventType, id int64) error
}

// ExpenseInput is raw user input for a new expense.
type ExpenseInput struct {
	Name     string
	Cost     string
	Currency string
	Date     string
	Tags     []string
}

// TagQueryResult is the union of expenses matching any of the requested tags.
type TagQueryResult struct {
	Tags     []string
	Expenses []core.Expense
	Total    core.Money
}

// ExpenseService orchestrates expense operations across SQLite and AMQP
type ExpenseService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
	summaries *cache.LRUCache[core.Summary]
	now       func() time.Time

	// mu orders cache fills against writes; writes counts committed writes.
	mu     sync.Mutex
	writes uint64
}

// NewExpenseService wires the service. publisher may be nil, in which case
// no events are emitted.
func NewExpenseService(storage *storage.SQLiteRepository, publisher EventPublisher, summaryTTL time.Duration) *ExpenseService {
	if summaryTTL <= 0 {
		summaryTTL = 5 * time.Minute
	}
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
		summaries: cache.NewLRUCache[core.Summary](1, summaryTTL),
		now:       time.Now,
	}
}

// SummaryCache exposes the cache so callers can register it for cleanup.
func (s *ExpenseService) SummaryCache() *cache.LRUCache[core.Summary] {
	return s.summaries
}

// CreateExpense parses and validates in, stores it and publishes
// expense.created.
func (s *ExpenseService) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	e, err := s.parseInput(in)
	if err != nil {
		return core.Expense{}, err
	}

	saved, err := s.storage.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.afterWrite(ctx, amqp.EventExpenseCreated, saved.ID)
	return saved, nil
}

func (s *ExpenseService) parseInput(in ExpenseInput) (core.Expense, error) {
	currency, err := core.ParseCurrency(in.Currency)
	if err != nil {
		return core.Expense{}, err
	}
	cost, err := core.ParseCost(in.Cost, currency)
	if err != nil {
		return core.Expense{}, err
	}
	date, err := core.ParseDate(in.Date, s.now())
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		Date: date,
		Name: strings.TrimSpace(in.Name),
		Cost: cost,
		Tags: core.NormalizeTagList(in.Tags),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *ExpenseService) RemoveExpense(ctx context.Context, id int64) error {
	if err := s.storage.RemoveExpense(ctx, id); err != nil {
		return fmt.Errorf("remove expense: %w", err)
	}
	s.afterWrite(ctx, amqp.EventExpenseDeleted, id)
	return nil
}

// UpdateTags replaces the tag set of an expense.
func (s *ExpenseService) UpdateTags(ctx context.Context, id int64, tags []string) (core.Expense, error) {
	e, err := s.storage.UpdateTags(ctx, id, tags)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update tags: %w", err)
	}
	s.afterWrite(ctx, amqp.EventExpenseTagsUpdated, id)
	return e, nil
}

// afterWrite drops cached aggregates and publishes the event. The local
// store is authoritative, so publish failures are only logged.
func (s *ExpenseService) afterWrite(ctx context.Context, t amqp.EventType, id int64) {
	s.mu.Lock()
	s.writes++
	s.summaries.Purge()
	s.mu.Unlock()

	logger := applog.For(ctx, applog.ComponentExpense)
	if s.publisher == nil {
		logger.DebugContext(ctx, "No event publisher configured", "type", t, applog.FieldExpenseID, id)
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, t, id); err != nil {
		logger.ErrorContext(ctx, "Failed to publish expense event", applog.NewFields().
			WithOperation(operationFor(t)).
			WithError(err).
			ToSlice()...)
	}
}

func operationFor(t amqp.EventType) string {
	switch t {
	case amqp.EventExpenseCreated:
		return applog.OpCreate
	case amqp.EventExpenseDeleted:
		return applog.OpDelete
	default:
		return applog.OpUpdate
	}
}

// Ready reports whether the backing store answers.
func (s *ExpenseService) Ready(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, id)
}

func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx)
}

func (s *ExpenseService) ListRecent(ctx context.Context, limit int) ([]core.Expense, error) {
	return s.storage.ListRecent(ctx, limit)
}

func (s *ExpenseService) ListByCost(ctx context.Context, limit int) ([]core.Expense, error) {
	return s.storage.ListByCost(ctx, limit)
}

func (s *ExpenseService) ListOver(ctx context.Context, threshold int64, limit int) ([]core.Expense, error) {
	return s.storage.ListOver(ctx, threshold, limit)
}

func (s *ExpenseService) ListByTag(ctx context.Context, tag string, limit int) ([]core.Expense, error) {
	return s.storage.ListByTag(ctx, tag, limit)
}

// ListByMonth lists a calendar month. A zero year means the current year.
func (s *ExpenseService) ListByMonth(ctx context.Context, year, month int) ([]core.Expense, error) {
	if year == 0 {
		year = s.now().Year()
	}
	return s.storage.ListByMonth(ctx, year, month)
}

// ExpensesForTags runs one tag query per tag and merges the results. An
// expense matching several tags is listed and counted once.
func (s *ExpenseService) ExpensesForTags(ctx context.Context, tags []string, limit int) (TagQueryResult, error) {
	names := core.NormalizeTagList(tags)
	if len(names) == 0 {
		return TagQueryResult{}, core.ErrInvalidTag
	}

	seen := make(map[int64]bool)
	var merged []core.Expense
	for _, name := range names {
		list, err := s.storage.ListByTag(ctx, name, limit)
		if err != nil {
			return TagQueryResult{}, err
		}
		for _, e := range list {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })

	return TagQueryResult{
		Tags:     names,
		Expenses: merged,
		Total:    core.SumCosts(merged),
	}, nil
}

func (s *ExpenseService) Total(ctx context.Context) (core.Money, error) {
	return s.storage.Total(ctx)
}

func (s *ExpenseService) DistinctTags(ctx context.Context) ([]string, error) {
	return s.storage.DistinctTags(ctx)
}

func (s *ExpenseService) ListTags(ctx context.Context) ([]core.Tag, error) {
	return s.storage.ListTags(ctx)
}

// Summary returns total, count and per-tag totals. The result is cached
// until the next write or until the TTL elapses. A summary computed while
// a write committed is recomputed, and never cached.
func (s *ExpenseService) Summary(ctx context.Context) (core.Summary, error) {
	if sum, ok := s.summaries.Get(summaryKey); ok {
		return sum, nil
	}

	var sum core.Summary
	for attempt := 0; attempt < summaryAttempts; attempt++ {
		gen := s.generation()
		var err error
		if sum, err = s.collectSummary(ctx); err != nil {
			return core.Summary{}, err
		}
		if s.cacheSummary(gen, sum) {
			return sum, nil
		}
		applog.For(ctx, applog.ComponentExpense).DebugContext(ctx, "Summary raced a write, recomputing",
			applog.FieldOperation, applog.OpSummarize,
			"attempt", attempt+1)
	}
	return sum, nil
}

func (s *ExpenseService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// cacheSummary stores sum only if no write committed since gen.
func (s *ExpenseService) cacheSummary(gen uint64, sum core.Summary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writes != gen {
		return false
	}
	s.summaries.Set(summaryKey, sum)
	return true
}

func (s *ExpenseService) collectSummary(ctx context.Context) (core.Summary, error) {
	var sum core.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.storage.Total(gctx)
		sum.Total = total
		return err
	})
	g.Go(func() error {
		n, err := s.storage.Count(gctx)
		sum.Count = n
		return err
	})
	g.Go(func() error {
		byTag, err := s.storage.TagTotals(gctx)
		sum.ByTag = byTag
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("build summary: %w", err)
	}
	return sum, nil
}

// Close closes storage and, when it supports closing, the publisher.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	return errors.Join(errs...)
}
