package transactions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest value a NUMERIC(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Money is a GBP amount with two decimal places. It encodes as a bare JSON
// number so clients see 150.50 rather than "150.50".
type Money struct {
	decimal.Decimal
}

// Exponent bounds for accepted amounts. Rounding or comparing a decimal
// rescales it by 10^|exponent|, so anything outside this window is refused
// before any arithmetic runs.
const (
	minExponent = -20
	maxExponent = 10
)

var errAmountRange = errors.New("amount out of range")

// NewMoney parses s as a decimal amount.
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	m := Money{Decimal: d}
	if !m.exponentInRange() {
		return Money{}, errAmountRange
	}
	return m, nil
}

func (m Money) exponentInRange() bool {
	exp := m.Exponent()
	return exp >= minExponent && exp <= maxExponent
}

// MustMoney is NewMoney that panics on error.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	return m.StringFixed(2)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number only.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n json.Number
	if len(data) == 0 || data[0] == '"' || json.Unmarshal(data, &n) != nil {
		return errors.New("priceGBP: must be a number")
	}
	parsed, err := NewMoney(n.String())
	if err != nil {
		return fmt.Errorf("priceGBP: %w", err)
	}
	*m = parsed
	return nil
}

// Validate checks the amount is positive, bounded and has at most two decimal places.
func (m Money) Validate() string {
	switch {
	case !m.exponentInRange():
		return "is out of range"
	case !m.IsPositive():
		return "must be greater than 0"
	case !m.Equal(m.Round(2)):
		return "must have at most 2 decimal places"
	case m.GreaterThan(MaxAmount):
		return "must not exceed " + MaxAmount.StringFixed(2)
	default:
		return ""
	}
}
