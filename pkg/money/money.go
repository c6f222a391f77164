// Package money converts between integer minor units and decimal amounts at the JSON boundary.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

// FromCents renders cents as a two-decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents rejects negative amounts and amounts with sub-cent precision.
func ToCents(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, apperr.Validation("amount must not be negative")
	}
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, apperr.Validation("amount %s has more than two decimal places", d.String())
	}
	return shifted.IntPart(), nil
}

// Amount is a JSON money value rendered as a fixed two-decimal string.
type Amount int64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + FromCents(int64(a)).StringFixed(2) + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return apperr.Validation("invalid amount: %v", err)
	}
	cents, err := ToCents(d)
	if err != nil {
		return err
	}
	*a = Amount(cents)
	return nil
}
