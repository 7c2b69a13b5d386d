package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/storage"
)

type publishedEvent struct {
	Type amqp.EventType
	ID   int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishExpenseEvent(_ context.Context, t amqp.EventType, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: t, ID: id})
	return p.err
}

func newTestService(t *testing.T, pub EventPublisher) *ExpenseService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(storage.MemoryPath)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	svc := NewExpenseService(repo, pub, time.Minute)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestCreateExpense(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(t, pub)
	ctx := context.Background()

	e, err := svc.CreateExpense(ctx, ExpenseInput{
		Name: "Ramen",
		Cost: "1,200",
		Date: "24-03-02",
		Tags: []string{"dining", " Dining", "Social"},
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if e.ID == 0 || e.Cost.Yen != 1200 || e.Date.String() != "2024-03-02" {
		t.Fatalf("unexpected expense %+v", e)
	}
	if len(e.Tags) != 2 || e.Tags[0] != "Dining" || e.Tags[1] != "Social" {
		t.Fatalf("unexpected tags %v", e.Tags)
	}
	if len(pub.events) != 1 || pub.events[0] != (publishedEvent{amqp.EventExpenseCreated, e.ID}) {
		t.Fatalf("unexpected events %v", pub.events)
	}
}

func TestCreateExpenseDefaultsAndCurrency(t *testing.T) {
	svc := newTestService(t, nil)

	e, err := svc.CreateExpense(context.Background(), ExpenseInput{
		Name:     "Book",
		Cost:     "10.00",
		Currency: "Dollars",
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if e.Cost.Yen != 1299 {
		t.Fatalf("expected 1299 yen, got %d", e.Cost.Yen)
	}
	if e.Date.String() != "2024-03-15" {
		t.Fatalf("expected today, got %s", e.Date)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(t, pub)

	tests := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"empty name", ExpenseInput{Name: " ", Cost: "100"}, core.ErrEmptyName},
		{"zero cost", ExpenseInput{Name: "x", Cost: "0"}, core.ErrInvalidCost},
		{"bad cost", ExpenseInput{Name: "x", Cost: "abc"}, core.ErrInvalidCost},
		{"bad date", ExpenseInput{Name: "x", Cost: "100", Date: "yesterday"}, core.ErrInvalidDate},
		{"bad currency", ExpenseInput{Name: "x", Cost: "100", Currency: "euro"}, core.ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateExpense(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if len(pub.events) != 0 {
		t.Fatalf("no events expected for rejected input, got %v", pub.events)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(t, pub)
	ctx := context.Background()

	e, err := svc.CreateExpense(ctx, ExpenseInput{Name: "Taxi", Cost: "2000"})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if _, err := svc.GetExpense(ctx, e.ID); err != nil {
		t.Fatalf("expense should be stored: %v", err)
	}
}

func TestRemoveAndUpdateTagsPublish(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(t, pub)
	ctx := context.Background()

	e, err := svc.CreateExpense(ctx, ExpenseInput{Name: "Soap", Cost: "300", Tags: []string{"Household"}})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	updated, err := svc.UpdateTags(ctx, e.ID, []string{"Groceries"})
	if err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "Groceries" {
		t.Fatalf("unexpected tags %v", updated.Tags)
	}

	if err := svc.RemoveExpense(ctx, e.ID); err != nil {
		t.Fatalf("RemoveExpense: %v", err)
	}
	if err := svc.RemoveExpense(ctx, e.ID); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	want := []publishedEvent{
		{amqp.EventExpenseCreated, e.ID},
		{amqp.EventExpenseTagsUpdated, e.ID},
		{amqp.EventExpenseDeleted, e.ID},
	}
	if len(pub.events) != len(want) {
		t.Fatalf("got events %v, want %v", pub.events, want)
	}
	for i := range want {
		if pub.events[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, pub.events[i], want[i])
		}
	}
}

func TestExpensesForTagsDeduplicates(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	add := func(name, cost string, tags ...string) core.Expense {
		t.Helper()
		e, err := svc.CreateExpense(ctx, ExpenseInput{Name: name, Cost: cost, Tags: tags})
		if err != nil {
			t.Fatalf("CreateExpense(%s): %v", name, err)
		}
		return e
	}
	a := add("Dinner with friends", "5000", "Dining", "Social")
	b := add("Lunch", "900", "Dining")
	add("Detergent", "400", "Household")
	c := add("Karaoke", "2500", "Social")

	res, err := svc.ExpensesForTags(ctx, []string{"social", "Dining"}, 0)
	if err != nil {
		t.Fatalf("ExpensesForTags: %v", err)
	}
	if len(res.Expenses) != 3 {
		t.Fatalf("expected 3 expenses, got %d", len(res.Expenses))
	}
	wantIDs := []int64{a.ID, b.ID, c.ID}
	for i, e := range res.Expenses {
		if e.ID != wantIDs[i] {
			t.Fatalf("expense %d id = %d, want %d", i, e.ID, wantIDs[i])
		}
	}
	if res.Total.Yen != 8400 {
		t.Fatalf("expected total 8400, got %d", res.Total.Yen)
	}

	if _, err := svc.ExpensesForTags(ctx, []string{" ", ""}, 0); !errors.Is(err, core.ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
}

func TestExpensesForTagsNonASCIICase(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for _, in := range []ExpenseInput{
		{Name: "Latte", Cost: "450", Tags: []string{"Café"}},
		{Name: "Mocha", Cost: "520", Tags: []string{"CAFÉ"}},
	} {
		if _, err := svc.CreateExpense(ctx, in); err != nil {
			t.Fatalf("CreateExpense(%s): %v", in.Name, err)
		}
	}

	res, err := svc.ExpensesForTags(ctx, []string{"CAFÉ"}, 0)
	if err != nil {
		t.Fatalf("ExpensesForTags: %v", err)
	}
	if len(res.Expenses) != 2 || res.Total.Yen != 970 {
		t.Fatalf("expected both expenses totalling 970, got %d expenses, total %d", len(res.Expenses), res.Total.Yen)
	}
}

func TestListByMonthDefaultsToCurrentYear(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for _, d := range []string{"2024-04-01", "2023-04-10", "2024-04-30", "2024-05-01"} {
		if _, err := svc.CreateExpense(ctx, ExpenseInput{Name: "x", Cost: "100", Date: d}); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	got, err := svc.ListByMonth(ctx, 0, 4)
	if err != nil {
		t.Fatalf("ListByMonth: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 expenses in 2024-04, got %d", len(got))
	}

	if _, err := svc.ListByMonth(ctx, 0, 13); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestSummaryIsCachedUntilWrite(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.CreateExpense(ctx, ExpenseInput{Name: "Rice", Cost: "1500", Tags: []string{"Groceries"}}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total.Yen != 1500 || sum.Count != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(sum.ByTag) != 1 || sum.ByTag[0].Name != "Groceries" || sum.ByTag[0].Total.Yen != 1500 {
		t.Fatalf("unexpected tag totals %+v", sum.ByTag)
	}

	if _, err := svc.Summary(ctx); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if hits := svc.SummaryCache().Stats().Hits; hits != 1 {
		t.Fatalf("expected cached summary, hits = %d", hits)
	}

	if _, err := svc.CreateExpense(ctx, ExpenseInput{Name: "Eggs", Cost: "300", Tags: []string{"Groceries"}}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	sum, err = svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total.Yen != 1800 || sum.Count != 2 {
		t.Fatalf("summary not refreshed after write: %+v", sum)
	}
}

func TestSummaryComputedDuringWriteIsNotCached(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.CreateExpense(ctx, ExpenseInput{Name: "Rice", Cost: "1500"}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	gen := svc.generation()
	stale, err := svc.collectSummary(ctx)
	if err != nil {
		t.Fatalf("collectSummary: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, ExpenseInput{Name: "Eggs", Cost: "300"}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	if svc.cacheSummary(gen, stale) {
		t.Fatal("summary computed before a write was cached")
	}
	if svc.SummaryCache().Size() != 0 {
		t.Fatal("stale summary left in cache")
	}

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total.Yen != 1800 || sum.Count != 2 {
		t.Fatalf("expected fresh summary, got %+v", sum)
	}
	if !svc.cacheSummary(svc.generation(), sum) {
		t.Fatal("expected summary to be cached without intervening writes")
	}
}

func TestCloseWithNilComponents(t *testing.T) {
	svc := &ExpenseService{}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close should not fail with nil components: %v", err)
	}
}
