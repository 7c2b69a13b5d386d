package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"expenses/internal/core"
	applog "expenses/internal/log"
	ports "expenses/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// batchSize caps the ranges sent in one values:batchUpdate call.
const batchSize = 500

// Header is written to the first row of an empty sheet.
var Header = []any{"ID", "Date", "Name", "Cost", "Tags"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	// Serializes find-then-write so two upserts of one id cannot both append.
	mu sync.Mutex
}

var (
	_ ports.ExpenseExporter = (*Client)(nil)
	_ ports.BulkExporter    = (*Client)(nil)
)

// Options configures the Sheets client. CredentialsJSON wins over
// CredentialsFile; when both are empty GOOGLE_APPLICATION_CREDENTIALS is read.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Expenses"
	}

	creds, err := loadCredentials(ctx, opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Google Sheets exporter ready", "sheet", sheet)
	return newWithService(svc, spreadsheetID, sheet), nil
}

func newWithService(svc *gsheet.Service, spreadsheetID, sheet string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}
}

func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Upsert overwrites the row holding e.ID, or appends a new one.
func (c *Client) Upsert(ctx context.Context, e core.Expense) (string, error) {
	if e.ID <= 0 {
		return "", fmt.Errorf("expense has no id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return "", err
	}

	row := findRow(ids, e.ID)
	if row == 0 {
		row = len(ids) + 1
		if row == 1 {
			if err := c.writeRow(ctx, 1, Header); err != nil {
				return "", fmt.Errorf("write header: %w", err)
			}
			row = 2
		}
	}

	if err := c.writeRow(ctx, row, expenseRow(e)); err != nil {
		return "", err
	}

	ref := rowRange(c.sheet, row)
	applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Exported expense to Google Sheets",
		applog.FieldOperation, applog.OpExport,
		applog.FieldExpenseID, e.ID,
		"range", ref)
	return ref, nil
}

// UpsertAll exports expenses with a single read of the id column and
// batched writes, so a pass costs a handful of API calls rather than two
// per expense.
func (c *Client) UpsertAll(ctx context.Context, expenses []core.Expense) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(expenses) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return 0, err
	}
	rows := indexRows(ids)
	next := len(ids) + 1

	var data []*gsheet.ValueRange
	if next == 1 {
		data = append(data, &gsheet.ValueRange{Range: rowRange(c.sheet, 1), Values: [][]any{Header}})
		next = 2
	}
	for _, e := range expenses {
		if e.ID <= 0 {
			return 0, fmt.Errorf("expense has no id")
		}
		row, ok := rows[e.ID]
		if !ok {
			row = next
			next++
			rows[e.ID] = row
		}
		data = append(data, &gsheet.ValueRange{Range: rowRange(c.sheet, row), Values: [][]any{expenseRow(e)}})
	}

	header := len(data) - len(expenses)
	written := 0
	for start := 0; start < len(data); start += batchSize {
		end := min(start+batchSize, len(data))
		req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: data[start:end]}
		if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return written, fmt.Errorf("batch update %d ranges: %w", end-start, err)
		}
		written = max(end-header, 0)
	}

	applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Exported expenses to Google Sheets",
		applog.FieldOperation, applog.OpBackfill,
		"count", written)
	return written, nil
}

// Delete clears the row holding id. A missing row is not an error.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	row := findRow(ids, id)
	if row == 0 {
		applog.For(ctx, applog.ComponentSheets).DebugContext(ctx, "Expense not present in sheet", applog.FieldExpenseID, id)
		return nil
	}

	rng := rowRange(c.sheet, row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Removed expense from Google Sheets",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id,
		"range", rng)
	return nil
}

func (c *Client) readIDColumn(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", quoteSheet(c.sheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRow(ctx context.Context, row int, values []any) error {
	rng := rowRange(c.sheet, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// expenseRow lays an expense out as ID | Date | Name | Cost | Tags.
func expenseRow(e core.Expense) []any {
	return []any{
		strconv.FormatInt(e.ID, 10),
		e.Date.String(),
		e.Name,
		e.Cost.Yen,
		core.JoinTags(e.Tags),
	}
}

// findRow returns the 1-based row whose first cell is id, or 0.
// Cleared rows come back as empty slices and are skipped.
func findRow(values [][]any, id int64) int {
	return indexRows(values)[id]
}

// indexRows maps expense ids to their 1-based rows. The first occurrence
// of an id wins; cells that are not ids (the header) are ignored.
func indexRows(values [][]any) map[int64]int {
	rows := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil {
			continue
		}
		if _, seen := rows[id]; !seen {
			rows[id] = i + 1
		}
	}
	return rows
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:E%d", quoteSheet(sheet), row, row)
}

// quoteSheet quotes sheet names that A1 notation cannot take bare.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " !'-") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
