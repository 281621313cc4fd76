/**
 * @description
 * Monetary amounts cross the API boundary as decimal strings ("1500.00")
 * and live in the core as int64 minor units. Parsing uses shopspring's
 * decimal type so "0.1" style inputs convert exactly; binary floats never
 * touch a balance.
 */
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into positive minor units.
// It rejects empty input, non-numeric input, more than two decimal places,
// and any value <= 0.
func ParseAmount(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal amount", ErrInvalidAmount, value)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("%w: at most two decimal places allowed", ErrInvalidAmount)
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}

	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: at most two decimal places allowed", ErrInvalidAmount)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units as a two-decimal string for responses.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
