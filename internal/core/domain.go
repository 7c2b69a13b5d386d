package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Yen     Currency = "Yen"
	Dollars Currency = "Dollars"
)

// DollarToYen is the fixed rate used when an expense is entered in dollars.
const DollarToYen = 0.0077

const (
	maxNameLength = 200
	maxTagLength  = 32
)

type (
	Currency string

	Date struct {
		time.Time
	}

	Money struct {
		Yen int64
	}

	Tag struct {
		ID   int64
		Name string
	}

	Expense struct {
		ID   int64 // assigned by the store
		Date Date
		Name string
		Cost Money
		Tags []string
	}
)

var (
	ErrExpenseNotFound = errors.New("expense not found")
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long (max 200 characters)")
	ErrInvalidCost     = errors.New("invalid cost")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidTag      = errors.New("invalid tag")
	ErrInvalidMonth    = errors.New("invalid month")
)

// DefaultTagNames is the tag catalogue installed with a fresh database.
var DefaultTagNames = []string{
	"Groceries",
	"Dining",
	"Household",
	"Social",
	"Travel",
	"Games",
	"Alcohol",
	"Big Purchases",
	"Bento",
	"Car",
	"Clothing",
	"Uber Eats",
}

// ParseCurrency maps user input to a Currency. Empty input means Yen.
func ParseCurrency(s string) (Currency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yen", "jpy", "¥":
		return Yen, nil
	case "dollars", "dollar", "usd", "$":
		return Dollars, nil
	default:
		return "", ErrInvalidCurrency
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date the way it is persisted.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (m Money) Validate() error {
	if m.Yen <= 0 {
		return ErrInvalidCost
	}
	return nil
}

func (t Tag) Validate() error {
	return validateTagName(t.Name)
}

func validateTagName(name string) error {
	if strings.TrimSpace(name) == "" || strings.Contains(name, TagSeparator) {
		return ErrInvalidTag
	}
	if utf8.RuneCountInString(name) > maxTagLength {
		return ErrInvalidTag
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(e.Name) > maxNameLength {
		return ErrNameTooLong
	}
	if err := e.Cost.Validate(); err != nil {
		return err
	}
	for _, tag := range e.Tags {
		if err := validateTagName(tag); err != nil {
			return err
		}
	}
	return nil
}

// HasTag reports whether the expense carries the tag, ignoring case.
func (e Expense) HasTag(name string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}
