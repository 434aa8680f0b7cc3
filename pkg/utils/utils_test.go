package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "he..."},
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"", 5, ""},
		{"abc", 2, "ab"},
		{"abc", 3, "abc"},
	}

	for _, tt := range tests {
		result := TruncateString(tt.input, tt.length)
		if result != tt.expected {
			t.Errorf("TruncateString(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestTruncateMiddle(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"0x52908400098527886E0F7030069857D2E4169EE7", 13, "0x529...69EE7"},
		{"did:dux:abcdef", 20, "did:dux:abcdef"},
		{"abcdefgh", 5, "ab..."},
		{"abcdefghij", 9, "abc...hij"},
	}

	for _, tt := range tests {
		result := TruncateMiddle(tt.input, tt.length)
		if len(result) > tt.length {
			t.Errorf("TruncateMiddle(%q, %d) = %q is longer than %d", tt.input, tt.length, result, tt.length)
		}
		if result != tt.expected {
			t.Errorf("TruncateMiddle(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestAddCommas(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567", "1,234,567"},
		{"1234.56", "1,234.56"},
		{"-1234", "-1,234"},
		{"", ""},
		{"1234567890123456789012", "1,234,567,890,123,456,789,012"},
	}

	for _, tt := range tests {
		result := AddCommas(tt.input)
		if result != tt.expected {
			t.Errorf("AddCommas(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1234.50000000 BTC", "1,234.50000000 BTC"},
		{"0 ETH", "0 ETH"},
		{"1000000 USDC", "1,000,000 USDC"},
		{"12345", "12,345"},
	}

	for _, tt := range tests {
		result := FormatAmount(tt.input)
		if result != tt.expected {
			t.Errorf("FormatAmount(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input    decimal.Decimal
		expected string
	}{
		{decimal.RequireFromString("1234.5678"), "$1,234.57"},
		{decimal.RequireFromString("1234.5"), "$1,234.50"},
		{decimal.Zero, "$0.00"},
		{decimal.RequireFromString("-9876543.21"), "-$9,876,543.21"},
	}

	for _, tt := range tests {
		result := FormatUSD(tt.input)
		if result != tt.expected {
			t.Errorf("FormatUSD(%s) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		input    uint64
		expected string
	}{
		{59, "0m"},
		{3600 + 120, "1h 2m"},
		{3*86400 + 4*3600 + 5*60, "3d 4h 5m"},
	}

	for _, tt := range tests {
		result := FormatUptime(tt.input)
		if result != tt.expected {
			t.Errorf("FormatUptime(%d) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestMask(t *testing.T) {
	if got := Mask("secretkey", 3); got != "******key" {
		t.Errorf("Mask = %q", got)
	}
	if got := Mask("ab", 3); got != "**" {
		t.Errorf("Mask short = %q", got)
	}
}
