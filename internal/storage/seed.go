package storage

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

//go:embed fixtures/seed.yaml
var seedYAML []byte

type seedFile struct {
	Expenses []seedExpense `yaml:"expenses"`
}

type seedExpense struct {
	Date string   `yaml:"date"`
	Name string   `yaml:"name"`
	Cost int64    `yaml:"cost"`
	Tags []string `yaml:"tags"`
}

// SeedExpenses decodes the bundled sample expenses.
func SeedExpenses() ([]core.Expense, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedYAML, &f); err != nil {
		return nil, fmt.Errorf("decode seed fixture: %w", err)
	}

	now := time.Now()
	out := make([]core.Expense, 0, len(f.Expenses))
	for i, s := range f.Expenses {
		date, err := core.ParseDate(s.Date, now)
		if err != nil {
			return nil, fmt.Errorf("seed expense %d: %w", i, err)
		}
		out = append(out, core.Expense{
			Date: date,
			Name: s.Name,
			Cost: core.Money{Yen: s.Cost},
			Tags: s.Tags,
		})
	}
	return out, nil
}

// Seed loads the sample expenses, used by debug mode.
func (r *SQLiteRepository) Seed(ctx context.Context) (int, error) {
	expenses, err := SeedExpenses()
	if err != nil {
		return 0, err
	}
	for _, e := range expenses {
		if _, err := r.AddExpense(ctx, e); err != nil {
			return 0, fmt.Errorf("seed %q: %w", e.Name, err)
		}
	}
	applog.For(ctx, applog.ComponentStorage).InfoContext(ctx, "Seeded sample expenses",
		applog.FieldOperation, applog.OpStartup,
		"count", len(expenses))
	return len(expenses), nil
}
