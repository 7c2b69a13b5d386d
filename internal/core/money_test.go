package core

import (
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"$4.50", 450, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseYen(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"160", 160, true},
		{"1,500", 1500, true},
		{"¥3200", 3200, true},
		{" 990 ", 990, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"12.5", 0, false},
		{"", 0, false},
		{"ten", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseYen(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidCost) {
			t.Fatalf("%q expected ErrInvalidCost, got %v", tc.in, err)
		}
	}
}

func TestParseCost(t *testing.T) {
	t.Run("yen is taken as is", func(t *testing.T) {
		m, err := ParseCost("660", Yen)
		if err != nil || m.Yen != 660 {
			t.Fatalf("got %v err=%v", m, err)
		}
	})

	t.Run("dollars are converted", func(t *testing.T) {
		m, err := ParseCost("10", Dollars)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 10 / 0.0077 = 1298.7
		if m.Yen != 1299 {
			t.Fatalf("expected 1299 yen, got %d", m.Yen)
		}
	})

	t.Run("dollar cents are honoured", func(t *testing.T) {
		m, err := ParseCost("1,50", Dollars)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 1.50 / 0.0077 = 194.8
		if m.Yen != 195 {
			t.Fatalf("expected 195 yen, got %d", m.Yen)
		}
	})

	t.Run("unknown currency", func(t *testing.T) {
		if _, err := ParseCost("10", Currency("Euro")); !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("expected ErrInvalidCurrency, got %v", err)
		}
	})

	t.Run("invalid amount", func(t *testing.T) {
		if _, err := ParseCost("x", Dollars); !errors.Is(err, ErrInvalidCost) {
			t.Fatalf("expected ErrInvalidCost, got %v", err)
		}
	})
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		160:     "¥160",
		1500:    "¥1,500",
		1234567: "¥1,234,567",
	}
	for yen, want := range cases {
		if got := (Money{Yen: yen}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", yen, got, want)
		}
	}
}
