package amount

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for input that is not a finite, non-negative
// decimal representable in 256 bits of smallest units.
var ErrInvalidAmount = errors.New("invalid amount")

// Raw is a non-negative count of a currency's smallest unit. It never goes
// through float64.
type Raw struct {
	n uint256.Int
}

// NewRaw returns a Raw holding v.
func NewRaw(v uint64) Raw {
	var r Raw
	r.n.SetUint64(v)
	return r
}

// ParseRaw parses a base-10 integer string.
func ParseRaw(s string) (Raw, error) {
	n, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return Raw{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, truncate(s), err)
	}
	return Raw{n: *n}, nil
}

// RawFromBig converts b, rejecting negative or oversized values.
func RawFromBig(b *big.Int) (Raw, error) {
	if b == nil {
		return Raw{}, nil
	}
	if b.Sign() < 0 {
		return Raw{}, fmt.Errorf("%w: negative value", ErrInvalidAmount)
	}
	n, overflow := uint256.FromBig(b)
	if overflow {
		return Raw{}, fmt.Errorf("%w: value overflows 256 bits", ErrInvalidAmount)
	}
	return Raw{n: *n}, nil
}

func (r Raw) IsZero() bool { return r.n.IsZero() }

func (r Raw) Cmp(o Raw) int { return r.n.Cmp(&o.n) }

func (r Raw) String() string { return r.n.Dec() }

// Big returns a copy of r as a big.Int.
func (r Raw) Big() *big.Int { return r.n.ToBig() }

// Decimal returns r expressed in whole units of c.
func (r Raw) Decimal(c Currency) decimal.Decimal {
	return decimal.NewFromBigInt(r.n.ToBig(), -int32(c.Scale()))
}

// MarshalJSON emits the amount as a bare JSON integer.
func (r Raw) MarshalJSON() ([]byte, error) {
	return []byte(r.n.Dec()), nil
}

// UnmarshalJSON accepts a JSON integer, a quoted integer, or a quoted
// display string such as "1.5 BTC" which some node builds emit for
// balances.
func (r *Raw) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*r = Raw{}
		return nil
	}
	if b[0] != '"' {
		parsed, err := ParseRaw(string(b))
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		if !strings.Contains(fields[0], ".") {
			parsed, err := ParseRaw(fields[0])
			if err != nil {
				return err
			}
			*r = parsed
			return nil
		}
	case 2:
		parsed, err := ToRaw(fields[0], Currency(fields[1]))
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}
	return fmt.Errorf("%w: unrecognized amount %q", ErrInvalidAmount, truncate(s))
}

// maxDigits is the number of decimal digits in the largest uint256.
const maxDigits = 78

func pow10(scale int) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(scale)))
}

// Split returns the whole and fractional parts of raw for the given scale.
func Split(raw Raw, scale int) (whole, fraction *uint256.Int) {
	whole, fraction = new(uint256.Int), new(uint256.Int)
	whole.DivMod(&raw.n, pow10(scale), fraction)
	return whole, fraction
}

// ToDisplay renders raw as "<whole>.<fraction> <CODE>", with the fraction
// zero-padded to exactly the currency scale, or "<whole> <CODE>" when the
// fraction is zero.
func ToDisplay(raw Raw, code Currency) string {
	scale := code.Scale()
	whole, fraction := Split(raw, scale)
	if fraction.IsZero() {
		return fmt.Sprintf("%s %s", whole.Dec(), code)
	}
	frac := fraction.Dec()
	if pad := scale - len(frac); pad > 0 {
		frac = strings.Repeat("0", pad) + frac
	}
	return fmt.Sprintf("%s.%s %s", whole.Dec(), frac, code)
}

// ToRaw converts a decimal amount in whole units into smallest units of
// code, flooring any precision beyond the currency scale. Zero is accepted;
// callers decide whether a zero amount is meaningful. Exponent notation is
// rejected.
func ToRaw(input string, code Currency) (Raw, error) {
	s := strings.TrimSpace(input)
	if strings.ContainsAny(s, "eE") {
		return Raw{}, fmt.Errorf("%w: exponent notation is not accepted", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Raw{}, fmt.Errorf("%w: %q", ErrInvalidAmount, truncate(input))
	}
	if d.IsNegative() {
		return Raw{}, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, truncate(input))
	}
	// Integer digits after scaling; anything longer cannot fit in 256 bits.
	if d.NumDigits()+int(d.Exponent())+code.Scale() > maxDigits {
		return Raw{}, fmt.Errorf("%w: value overflows 256 bits", ErrInvalidAmount)
	}
	scaled := d.Shift(int32(code.Scale())).Floor()
	return RawFromBig(scaled.BigInt())
}

// truncate keeps error text short when the input is long.
func truncate(s string) string {
	const max = 32
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
