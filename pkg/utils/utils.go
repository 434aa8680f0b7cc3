package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// TruncateMiddle keeps both ends of long identifiers such as addresses and
// DIDs, which are recognised by their prefix and suffix.
func TruncateMiddle(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 5 {
		return TruncateString(str, num)
	}
	keep := num - 3
	head := (keep + 1) / 2
	tail := keep - head
	return str[:head] + "..." + str[len(str)-tail:]
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.SplitN(s, ".", 2)
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	for i, ch := range integerPart {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

// FormatAmount groups the whole part of a display amount such as
// "1234.50000000 BTC" without touching the fraction or the code.
func FormatAmount(display string) string {
	num, code, found := strings.Cut(display, " ")
	if !found {
		return AddCommas(display)
	}
	return AddCommas(num) + " " + code
}

// FormatUSD renders a USD value with two decimals and thousands separators.
func FormatUSD(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if strings.HasPrefix(s, "-") {
		return "-$" + AddCommas(s[1:])
	}
	return "$" + AddCommas(s)
}

// FormatUptime renders seconds as e.g. "3d 4h 5m".
func FormatUptime(seconds uint64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Mask replaces all but the last visible characters of s with asterisks.
func Mask(s string, visible int) string {
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-visible) + s[len(s)-visible:]
}
