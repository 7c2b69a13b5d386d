package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the parameterized statements used by SQLiteRepository.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Expense is a row of the expenses table.
type Expense struct {
	ID   int64
	Date string
	Name string
	Cost int64
}

// Tag is a row of the tags table.
type Tag struct {
	ID   int64
	Name string
}

type TagTotalRow struct {
	Name  string
	Count int64
	Total int64
}

const createExpense = `INSERT INTO expenses (date, name, cost) VALUES (?, ?, ?)`

type CreateExpenseParams struct {
	Date string
	Name string
	Cost int64
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createExpense, arg.Date, arg.Name, arg.Cost)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpenseTags = `DELETE FROM expense_tags WHERE expense_id = ?`

func (q *Queries) DeleteExpenseTags(ctx context.Context, expenseID int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpenseTags, expenseID)
	return err
}

const insertExpenseTag = `INSERT OR IGNORE INTO expense_tags (expense_id, tag_id) VALUES (?, ?)`

func (q *Queries) InsertExpenseTag(ctx context.Context, expenseID, tagID int64) error {
	_, err := q.db.ExecContext(ctx, insertExpenseTag, expenseID, tagID)
	return err
}

const getExpense = `SELECT id, date, name, cost FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id)
	var i Expense
	err := row.Scan(&i.ID, &i.Date, &i.Name, &i.Cost)
	return i, err
}

const listExpenses = `SELECT id, date, name, cost FROM expenses ORDER BY id`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpenses)
}

const listRecentExpenses = `SELECT id, date, name, cost FROM expenses ORDER BY id DESC LIMIT ?`

func (q *Queries) ListRecentExpenses(ctx context.Context, limit int64) ([]Expense, error) {
	return q.queryExpenses(ctx, listRecentExpenses, limit)
}

const listExpensesByCost = `SELECT id, date, name, cost FROM expenses ORDER BY cost DESC, id LIMIT ?`

func (q *Queries) ListExpensesByCost(ctx context.Context, limit int64) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpensesByCost, limit)
}

const listExpensesOver = `SELECT id, date, name, cost FROM expenses WHERE cost > ? ORDER BY id LIMIT ?`

type ListExpensesOverParams struct {
	Threshold int64
	Limit     int64
}

func (q *Queries) ListExpensesOver(ctx context.Context, arg ListExpensesOverParams) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpensesOver, arg.Threshold, arg.Limit)
}

const listExpensesBetween = `SELECT id, date, name, cost FROM expenses
WHERE date >= ? AND date < ?
ORDER BY date, id`

type ListExpensesBetweenParams struct {
	From  string
	Until string
}

func (q *Queries) ListExpensesBetween(ctx context.Context, arg ListExpensesBetweenParams) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpensesBetween, arg.From, arg.Until)
}

const listExpensesByTag = `SELECT e.id, e.date, e.name, e.cost FROM expenses e
INNER JOIN expense_tags et ON e.id = et.expense_id
WHERE et.tag_id = ?
ORDER BY e.id
LIMIT ?`

type ListExpensesByTagParams struct {
	TagID int64
	Limit int64
}

func (q *Queries) ListExpensesByTag(ctx context.Context, arg ListExpensesByTagParams) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpensesByTag, arg.TagID, arg.Limit)
}

const totalCost = `SELECT COALESCE(SUM(cost), 0) FROM expenses`

func (q *Queries) TotalCost(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, totalCost).Scan(&total)
	return total, err
}

const countExpenses = `SELECT COUNT(*) FROM expenses`

func (q *Queries) CountExpenses(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countExpenses).Scan(&n)
	return n, err
}

const listTags = `SELECT id, name FROM tags ORDER BY id`

func (q *Queries) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := q.db.QueryContext(ctx, listTags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tag
	for rows.Next() {
		var i Tag
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTag = `INSERT OR IGNORE INTO tags (name) VALUES (?)`

func (q *Queries) CreateTag(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, createTag, name)
	return err
}

const getTagByName = `SELECT id, name FROM tags WHERE name = ? COLLATE NOCASE`

func (q *Queries) GetTagByName(ctx context.Context, name string) (Tag, error) {
	var i Tag
	err := q.db.QueryRowContext(ctx, getTagByName, name).Scan(&i.ID, &i.Name)
	return i, err
}

const listExpenseTagIDs = `SELECT tag_id FROM expense_tags WHERE expense_id = ? ORDER BY rowid`

func (q *Queries) ListExpenseTagIDs(ctx context.Context, expenseID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listExpenseTagIDs, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

const listUsedTagNames = `SELECT DISTINCT t.name FROM tags t
INNER JOIN expense_tags et ON et.tag_id = t.id
ORDER BY t.name COLLATE NOCASE`

func (q *Queries) ListUsedTagNames(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUsedTagNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

const listTagTotals = `SELECT t.name, COUNT(*), COALESCE(SUM(e.cost), 0) FROM tags t
INNER JOIN expense_tags et ON et.tag_id = t.id
INNER JOIN expenses e ON e.id = et.expense_id
GROUP BY t.id, t.name
ORDER BY 3 DESC, t.name`

func (q *Queries) ListTagTotals(ctx context.Context) ([]TagTotalRow, error) {
	rows, err := q.db.QueryContext(ctx, listTagTotals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TagTotalRow
	for rows.Next() {
		var i TagTotalRow
		if err := rows.Scan(&i.Name, &i.Count, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) queryExpenses(ctx context.Context, query string, args ...interface{}) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.ID, &i.Date, &i.Name, &i.Cost); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
