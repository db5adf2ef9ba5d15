package grid

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuoteAmountFixed(t *testing.T) {
	s := NewCapitalSizer(SizeFixed, d("10"), decimal.Zero, d("5"))

	amount, err := s.QuoteAmount(d("1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d("10")) {
		t.Errorf("amount = %s, want 10", amount)
	}

	// fixed amount caps at the free balance
	amount, err = s.QuoteAmount(d("7"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d("7")) {
		t.Errorf("amount = %s, want 7", amount)
	}
}

func TestQuoteAmountPercent(t *testing.T) {
	s := NewCapitalSizer(SizePercent, decimal.Zero, d("0.1"), d("5"))

	amount, err := s.QuoteAmount(d("1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d("100")) {
		t.Errorf("amount = %s, want 100", amount)
	}
}

func TestQuoteAmountBelowMinNotional(t *testing.T) {
	tests := []struct {
		name    string
		sizer   *CapitalSizer
		balance string
	}{
		{"fixed below min", NewCapitalSizer(SizeFixed, d("3"), decimal.Zero, d("5")), "1000"},
		{"percent below min", NewCapitalSizer(SizePercent, decimal.Zero, d("0.1"), d("5")), "40"},
		{"balance exhausted", NewCapitalSizer(SizeFixed, d("10"), decimal.Zero, d("5")), "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sizer.QuoteAmount(d(tt.balance))
			if !errors.Is(err, ErrInsufficientCapital) {
				t.Errorf("err = %v, want ErrInsufficientCapital", err)
			}
		})
	}
}

func TestTruncateQuantity(t *testing.T) {
	tests := []struct {
		qty, step, want string
	}{
		{"0.123456", "0.01", "0.12"},
		{"0.199999", "0.01", "0.19"}, // never rounds up
		{"5", "1", "5"},
		{"0.009", "0.01", "0"},
		{"3.7", "0", "3.7"}, // no step configured
	}

	for _, tt := range tests {
		got := TruncateQuantity(d(tt.qty), d(tt.step))
		if !got.Equal(d(tt.want)) {
			t.Errorf("TruncateQuantity(%s, %s) = %s, want %s", tt.qty, tt.step, got, tt.want)
		}
	}
}

func TestIsDust(t *testing.T) {
	s := NewCapitalSizer(SizeFixed, d("10"), decimal.Zero, d("5"))

	if !s.IsDust(d("0.005"), d("100"), d("0.01")) {
		t.Error("sub-lot quantity should be dust")
	}
	if !s.IsDust(d("0.04"), d("100"), d("0.01")) {
		t.Error("quantity worth less than min notional should be dust")
	}
	if s.IsDust(d("0.1"), d("100"), d("0.01")) {
		t.Error("0.1 at price 100 is sellable, not dust")
	}
}
