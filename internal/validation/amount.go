package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateAmount parses a positive decimal amount with at most decimals fractional digits
func ValidateAmount(amount string, decimals int32) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}

	if exp := d.Exponent(); exp < 0 && -exp > decimals {
		return decimal.Zero, fmt.Errorf("%w: %d decimal places exceeds %d", ErrInvalidAmount, -exp, decimals)
	}
	return d, nil
}
