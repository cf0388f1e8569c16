package refund

import "github.com/shopspring/decimal"

// ValidationResult classifies a proposed refund amount.
type ValidationResult string

const (
	ValidationValid   ValidationResult = "valid"
	ValidationTooHigh ValidationResult = "too_high"
	ValidationTooLow  ValidationResult = "too_low"
)

// Message returns the user-facing message for a validation failure.
func (v ValidationResult) Message() string {
	switch v {
	case ValidationTooHigh:
		return "refund amount exceeds the amount available for refund"
	case ValidationTooLow:
		return "refund amount must be greater than zero"
	default:
		return ""
	}
}

// ValidateAmount gates a refund submission. TooHigh when the amount exceeds
// the refundable headroom, TooLow when it is financially equivalent to zero
// (scale-insensitive). Amounts exactly at the ceiling are valid.
func ValidateAmount(amount, maxRefund decimal.Decimal) ValidationResult {
	if amount.GreaterThan(maxRefund) {
		return ValidationTooHigh
	}
	if IsEquivalent(&amount, nil) || amount.IsNegative() {
		return ValidationTooLow
	}
	return ValidationValid
}
