package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Minor-unit exponents for currencies that deviate from the usual 2.
var minorUnitExponents = map[string]int32{
	"BHD": 3,
	"CLP": 0,
	"ISK": 0,
	"JOD": 3,
	"JPY": 0,
	"KRW": 0,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
	"VND": 0,
}

// Exponent returns the number of decimal places used by the given
// ISO 4217 currency code. Unknown codes default to 2.
func Exponent(code string) int32 {
	if exp, ok := minorUnitExponents[strings.ToUpper(code)]; ok {
		return exp
	}
	return 2
}

// Round rounds an amount to the currency's decimal places, half up.
// Only used at formatting/boundary time; internal arithmetic keeps full
// precision.
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Exponent(code))
}

// Format renders an amount for display, e.g. "80.00 USD" or "150 JPY".
func Format(amount decimal.Decimal, code string) string {
	return amount.StringFixed(Exponent(code)) + " " + strings.ToUpper(code)
}

// ToMinorUnits converts a decimal amount to the currency's minor units
// (cents for USD, yen for JPY). Gateways take minor-unit integers.
func ToMinorUnits(amount decimal.Decimal, code string) int64 {
	return Round(amount, code).Shift(Exponent(code)).IntPart()
}

// FromMinorUnits converts a minor-unit integer back to a decimal amount.
func FromMinorUnits(units int64, code string) decimal.Decimal {
	return decimal.NewFromInt(units).Shift(-Exponent(code))
}
