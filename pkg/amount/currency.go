package amount

import "strings"

// Currency is a currency code as reported by the node.
type Currency string

const (
	BTC  Currency = "BTC"
	ETH  Currency = "ETH"
	USDC Currency = "USDC"
	LTC  Currency = "LTC"
	XMR  Currency = "XMR"
	DOGE Currency = "DOGE"
)

// DefaultScale is used for any code outside the supported set.
const DefaultScale = 8

var currencies = []Currency{BTC, ETH, USDC, LTC, XMR, DOGE}

var scales = map[Currency]int{
	BTC:  8,
	ETH:  18,
	USDC: 6,
	LTC:  8,
	XMR:  12,
	DOGE: 8,
}

var names = map[Currency]string{
	BTC:  "Bitcoin",
	ETH:  "Ethereum",
	USDC: "USD Coin",
	LTC:  "Litecoin",
	XMR:  "Monero",
	DOGE: "Dogecoin",
}

// All returns the supported currencies in display order.
func All() []Currency {
	out := make([]Currency, len(currencies))
	copy(out, currencies)
	return out
}

// Scale returns the number of fractional digits of c. Unknown codes fall
// back to DefaultScale rather than failing.
func (c Currency) Scale() int {
	if s, ok := scales[c]; ok {
		return s
	}
	return DefaultScale
}

// Known reports whether c is one of the supported currencies.
func (c Currency) Known() bool {
	_, ok := scales[c]
	return ok
}

// Name returns the human readable name, or the code itself when unknown.
func (c Currency) Name() string {
	if n, ok := names[c]; ok {
		return n
	}
	return string(c)
}

func (c Currency) String() string { return string(c) }

// ParseCurrency normalizes s and reports whether it is a supported code.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Known()
}
