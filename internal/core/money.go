// Package core provides money parsing and handling utilities.
//
// Costs are stored as whole yen. Amounts entered in dollars are converted
// at DollarToYen before they reach the store.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.346") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, ErrInvalidCost
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidCost
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidCost
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0, ErrInvalidCost
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidCost
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidCost
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidCost
	}
	return cents, nil
}

// ParseYen parses a whole-yen amount. Thousands separators and a leading
// yen sign are tolerated: "¥1,500" -> 1500.
func ParseYen(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || !allDigits(s) {
		return 0, ErrInvalidCost
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidCost
	}
	return v, nil
}

// DollarsToYen converts a dollar amount in cents to whole yen.
func DollarsToYen(cents int64) int64 {
	return int64(math.Round(float64(cents) / 100.0 / DollarToYen))
}

// ParseCost parses raw user input in the given currency into yen.
func ParseCost(raw string, currency Currency) (Money, error) {
	switch currency {
	case Yen, "":
		v, err := ParseYen(raw)
		if err != nil {
			return Money{}, err
		}
		return Money{Yen: v}, nil
	case Dollars:
		cents, err := ParseDecimalToCents(raw)
		if err != nil {
			return Money{}, err
		}
		yen := DollarsToYen(cents)
		if yen <= 0 {
			return Money{}, ErrInvalidCost
		}
		return Money{Yen: yen}, nil
	default:
		return Money{}, ErrInvalidCurrency
	}
}

// String renders the amount for display, e.g. "¥1,500".
func (m Money) String() string {
	return "¥" + humanize.Comma(m.Yen)
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
