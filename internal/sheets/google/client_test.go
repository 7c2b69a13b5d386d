package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenses/internal/core"
)

const valuesPrefix = "/v4/spreadsheets/sheet-id/values"

// fakeSheets serves the four values endpoints the client uses and keeps
// one sheet in memory, keyed by 1-based row.
type fakeSheets struct {
	mu    sync.Mutex
	rows  map[int][]any
	calls []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, valuesPrefix)
	switch {
	case r.Method == http.MethodPost && path == ":batchUpdate":
		var req gsheet.BatchUpdateValuesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, vr := range req.Data {
			f.rows[rowOf(vr.Range)] = vr.Values[0]
		}
		f.calls = append(f.calls, "BATCH "+strconv.Itoa(len(req.Data)))
		writeJSON(w, gsheet.BatchUpdateValuesResponse{TotalUpdatedRows: int64(len(req.Data))})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		rng := strings.TrimSuffix(strings.TrimPrefix(path, "/"), ":clear")
		delete(f.rows, rowOf(rng))
		f.calls = append(f.calls, "CLEAR "+rng)
		writeJSON(w, gsheet.ClearValuesResponse{ClearedRange: rng})

	case r.Method == http.MethodPut:
		rng := strings.TrimPrefix(path, "/")
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.rows[rowOf(rng)] = vr.Values[0]
		f.calls = append(f.calls, "PUT "+rng)
		writeJSON(w, gsheet.UpdateValuesResponse{UpdatedRange: rng})

	case r.Method == http.MethodGet:
		rng := strings.TrimPrefix(path, "/")
		f.calls = append(f.calls, "GET "+rng)
		writeJSON(w, gsheet.ValueRange{Range: rng, Values: f.idColumn()})

	default:
		http.NotFound(w, r)
	}
}

// idColumn mirrors a values.get of A:A: one entry per row up to the last
// non-empty one, with cleared rows as empty slices.
func (f *fakeSheets) idColumn() [][]any {
	last := 0
	for row := range f.rows {
		last = max(last, row)
	}
	values := make([][]any, last)
	for i := range values {
		values[i] = []any{}
		if row, ok := f.rows[i+1]; ok {
			values[i] = []any{row[0]}
		}
	}
	return values
}

func (f *fakeSheets) takeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}

func (f *fakeSheets) cell(row, col int) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[row]
	if !ok || col >= len(r) {
		return nil
	}
	return r[col]
}

func rowOf(rng string) int {
	_, cells, _ := strings.Cut(rng, "!")
	start, _, _ := strings.Cut(cells, ":")
	n, _ := strconv.Atoi(strings.TrimLeft(start, "ABCDE"))
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newFakeClient(t *testing.T) (*fakeSheets, *Client) {
	t.Helper()
	fake := &fakeSheets{rows: make(map[int][]any)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return fake, newWithService(svc, "sheet-id", "Expenses")
}

func sheetExpense(id int64, name string) core.Expense {
	return core.Expense{
		ID:   id,
		Date: core.NewDate(2021, 4, 18),
		Name: name,
		Cost: core.Money{Yen: 500},
		Tags: []string{"Dining"},
	}
}

func TestClientUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	fake, c := newFakeClient(t)

	ref, err := c.Upsert(ctx, sheetExpense(1, "Coffee"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref != "Expenses!A2:E2" {
		t.Fatalf("first expense range = %q", ref)
	}
	if fake.cell(1, 0) != "ID" || fake.cell(2, 0) != "1" {
		t.Fatalf("expected header then expense, got %v / %v", fake.cell(1, 0), fake.cell(2, 0))
	}
	wantCalls := []string{"GET Expenses!A:A", "PUT Expenses!A1:E1", "PUT Expenses!A2:E2"}
	if calls := fake.takeCalls(); !reflect.DeepEqual(calls, wantCalls) {
		t.Fatalf("calls = %v, want %v", calls, wantCalls)
	}

	if ref, _ := c.Upsert(ctx, sheetExpense(2, "Bread")); ref != "Expenses!A3:E3" {
		t.Fatalf("second expense range = %q", ref)
	}

	ref, err = c.Upsert(ctx, sheetExpense(1, "Latte"))
	if err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	if ref != "Expenses!A2:E2" || fake.cell(2, 2) != "Latte" {
		t.Fatalf("expected row 2 overwritten, got %q with name %v", ref, fake.cell(2, 2))
	}
	if fake.cell(4, 0) != nil {
		t.Fatal("re-upsert must not append a row")
	}
	fake.takeCalls()

	if err := c.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	wantCalls = []string{"GET Expenses!A:A", "CLEAR Expenses!A2:E2"}
	if calls := fake.takeCalls(); !reflect.DeepEqual(calls, wantCalls) {
		t.Fatalf("calls = %v, want %v", calls, wantCalls)
	}
	if fake.cell(2, 0) != nil || fake.cell(3, 0) != "2" {
		t.Fatal("expected only row 2 cleared")
	}

	if err := c.Delete(ctx, 99); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if calls := fake.takeCalls(); !reflect.DeepEqual(calls, []string{"GET Expenses!A:A"}) {
		t.Fatalf("deleting a missing id should only read, got %v", calls)
	}
}

func TestClientUpsertAllBatches(t *testing.T) {
	ctx := context.Background()
	fake, c := newFakeClient(t)

	n, err := c.UpsertAll(ctx, []core.Expense{
		sheetExpense(1, "Coffee"),
		sheetExpense(2, "Bread"),
		sheetExpense(3, "Milk"),
	})
	if err != nil {
		t.Fatalf("UpsertAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("written = %d, want 3", n)
	}
	wantCalls := []string{"GET Expenses!A:A", "BATCH 4"}
	if calls := fake.takeCalls(); !reflect.DeepEqual(calls, wantCalls) {
		t.Fatalf("calls = %v, want %v", calls, wantCalls)
	}
	for row, want := range map[int]string{1: "ID", 2: "1", 3: "2", 4: "3"} {
		if got := fake.cell(row, 0); got != want {
			t.Errorf("row %d id = %v, want %q", row, got, want)
		}
	}

	n, err = c.UpsertAll(ctx, []core.Expense{sheetExpense(2, "Rye bread"), sheetExpense(4, "Eggs")})
	if err != nil {
		t.Fatalf("second UpsertAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("written = %d, want 2", n)
	}
	wantCalls = []string{"GET Expenses!A:A", "BATCH 2"}
	if calls := fake.takeCalls(); !reflect.DeepEqual(calls, wantCalls) {
		t.Fatalf("calls = %v, want %v", calls, wantCalls)
	}
	if fake.cell(3, 2) != "Rye bread" || fake.cell(5, 0) != "4" {
		t.Fatalf("expected row 3 updated and row 5 appended, got %v / %v", fake.cell(3, 2), fake.cell(5, 0))
	}
}
