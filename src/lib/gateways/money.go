package gateways

import (
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/shopspring/decimal"
)

// MAX_AMOUNT_MINOR caps a single donation at one billion major units. Anything larger is a
// malformed payload, not a gift.
const MAX_AMOUNT_MINOR int64 = 100_000_000_000

var maxAmountMinor = decimal.NewFromInt(MAX_AMOUNT_MINOR)

// ParseMinorUnits converts a decimal amount such as "1500" or "12.50" to cents.
func ParseMinorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, types.NewValidationError("amount", "must be a decimal number")
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return 0, types.NewValidationError("amount", "must have at most two decimal places")
	}
	return toMinor("amount", d)
}

// MinorFromDecimalValue is used for provider payloads that send amounts as JSON numbers.
// Sub-cent digits are rounded away. field names the payload key in the error.
func MinorFromDecimalValue(field string, v decimal.Decimal) (int64, error) {
	return toMinor(field, v.Round(2))
}

// toMinor checks the range before IntPart, which wraps outside int64.
func toMinor(field string, d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, types.NewValidationError(field, "must be greater than zero")
	}
	minor := d.Shift(2)
	if minor.GreaterThan(maxAmountMinor) {
		return 0, types.NewValidationError(field, "exceeds the maximum donation")
	}
	return minor.IntPart(), nil
}

func FormatMinorUnits(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// WholeUnits is used by rails that only accept integer amounts.
func WholeUnits(minor int64) (int64, error) {
	if minor%100 != 0 {
		return 0, types.NewValidationError("amount", "must be a whole number for this payment method")
	}
	return minor / 100, nil
}
