package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal value that encodes as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

// New wraps a decimal value.
func New(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// FromFloat is a convenience for tests and defaults.
func FromFloat(f float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(f)}
}

// Parse reads a user-typed amount. A single decimal comma is accepted.
func Parse(text string) (Amount, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	if strings.Count(text, ",") == 1 && !strings.Contains(text, ".") {
		text = strings.Replace(text, ",", ".", 1)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", text, err)
	}
	return Amount{Decimal: d}, nil
}

// Positive reports whether the amount is strictly greater than zero.
func (a Amount) Positive() bool {
	return a.Decimal.IsPositive()
}

// MarshalJSON writes the amount without quotes.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}
