package refund

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	maxRefund := decimal.RequireFromString("70.00")

	tests := []struct {
		name   string
		amount string
		want   ValidationResult
	}{
		{"within headroom", "50.00", ValidationValid},
		{"exactly at ceiling", "70.00", ValidationValid},
		{"ceiling at different scale", "70", ValidationValid},
		{"one cent over", "70.01", ValidationTooHigh},
		{"far over", "1000.00", ValidationTooHigh},
		{"zero", "0", ValidationTooLow},
		{"scaled zero", "0.00", ValidationTooLow},
		{"negative", "-5.00", ValidationTooLow},
		{"smallest positive", "0.01", ValidationValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateAmount(decimal.RequireFromString(tt.amount), maxRefund)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateAmountZeroHeadroom(t *testing.T) {
	// Fully refunded order: everything non-zero is too high.
	got := ValidateAmount(decimal.RequireFromString("0.01"), decimal.Zero)
	assert.Equal(t, ValidationTooHigh, got)

	got = ValidateAmount(decimal.Zero, decimal.Zero)
	assert.Equal(t, ValidationTooLow, got)
}

func TestValidationMessages(t *testing.T) {
	assert.Empty(t, ValidationValid.Message())
	assert.Equal(t, "refund amount exceeds the amount available for refund", ValidationTooHigh.Message())
	assert.Equal(t, "refund amount must be greater than zero", ValidationTooLow.Message())
}
