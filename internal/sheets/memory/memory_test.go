package memory

import (
	"context"
	"testing"

	"expenses/internal/core"
)

func TestStoreUpsertAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	e := core.Expense{ID: 3, Date: core.NewDate(2024, 1, 2), Name: "Tea", Cost: core.Money{Yen: 400}}
	ref, err := s.Upsert(ctx, e)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref != "mem:3" {
		t.Fatalf("unexpected ref %q", ref)
	}

	e.Tags = []string{"Dining"}
	if _, err := s.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("upsert should overwrite, got %d rows", s.Len())
	}
	if got, _ := s.Get(3); len(got.Tags) != 1 {
		t.Fatalf("expected updated tags, got %v", got.Tags)
	}

	if _, err := s.Upsert(ctx, core.Expense{Name: "no id"}); err == nil {
		t.Fatal("expected error for expense without id")
	}

	if err := s.Delete(ctx, 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, 3); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestStoreRowsOrdered(t *testing.T) {
	s := New()
	for _, id := range []int64{5, 1, 3} {
		if _, err := s.Upsert(context.Background(), core.Expense{ID: id}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	rows := s.Rows()
	for i, want := range []int64{1, 3, 5} {
		if rows[i].ID != want {
			t.Fatalf("row %d id = %d, want %d", i, rows[i].ID, want)
		}
	}
}

func TestStoreUpsertAll(t *testing.T) {
	s := New()
	ctx := context.Background()

	n, err := s.UpsertAll(ctx, []core.Expense{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {Name: "no id"}, {ID: 4}})
	if err == nil {
		t.Fatal("expected error for expense without id")
	}
	if n != 2 || s.Len() != 2 {
		t.Fatalf("expected 2 rows written before the error, got n=%d len=%d", n, s.Len())
	}
}
