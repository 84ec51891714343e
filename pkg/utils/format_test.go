package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0", "$0.00"},
		{"100", "$100.00"},
		{"1000", "$1,000.00"},
		{"66123.456", "$66,123.46"},
		{"123456789", "$123,456,789.00"},
		{"0.1534", "$0.153400"},
		{"-1234.5", "-$1,234.50"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatUSD(decimal.RequireFromString(tt.input))
			if result != tt.expected {
				t.Errorf("FormatUSD(%s) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatUSDCompact(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"500", "$500.00"},
		{"1500", "$1.50K"},
		{"2500000", "$2.50M"},
		{"35000000000", "$35.00B"},
		{"1300000000000", "$1.30T"},
		{"-2000000", "-$2.00M"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatUSDCompact(decimal.RequireFromString(tt.input))
			if result != tt.expected {
				t.Errorf("FormatUSDCompact(%s) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2.45", "+2.45%"},
		{"-1.234", "-1.23%"},
		{"0", "+0.00%"},
	}

	for _, tt := range tests {
		if got := FormatPct(decimal.RequireFromString(tt.input)); got != tt.expected {
			t.Errorf("FormatPct(%s) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}
