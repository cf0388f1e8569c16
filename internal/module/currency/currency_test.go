package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestExponent(t *testing.T) {
	tests := []struct {
		code     string
		expected int32
	}{
		{"USD", 2},
		{"usd", 2},
		{"EUR", 2},
		{"JPY", 0},
		{"jpy", 0},
		{"KWD", 3},
		{"XYZ", 2},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, Exponent(tt.code))
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		amount   string
		code     string
		expected string
	}{
		{"80", "USD", "80.00 USD"},
		{"80.005", "usd", "80.01 USD"},
		{"150", "JPY", "150 JPY"},
		{"1.2345", "KWD", "1.235 KWD"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			assert.Equal(t, tt.expected, Format(amount, tt.code))
		})
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		minor  int64
	}{
		{"80.00", "USD", 8000},
		{"0.01", "USD", 1},
		{"150", "JPY", 150},
		{"1.234", "KWD", 1234},
	}

	for _, tt := range tests {
		t.Run(tt.amount+tt.code, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			assert.Equal(t, tt.minor, ToMinorUnits(amount, tt.code))
			assert.True(t, FromMinorUnits(tt.minor, tt.code).Equal(amount))
		})
	}
}
