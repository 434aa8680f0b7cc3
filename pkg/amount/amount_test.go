package amount

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRaw(t *testing.T, s string) Raw {
	t.Helper()
	r, err := ParseRaw(s)
	require.NoError(t, err)
	return r
}

func TestToDisplay(t *testing.T) {
	tests := []struct {
		raw      string
		code     Currency
		expected string
	}{
		{"0", BTC, "0 BTC"},
		{"123456789", BTC, "1.23456789 BTC"},
		{"100000000", BTC, "1 BTC"},
		{"1", BTC, "0.00000001 BTC"},
		{"150000000", BTC, "1.50000000 BTC"},
		{"1000000", USDC, "1 USDC"},
		{"1500000", USDC, "1.500000 USDC"},
		{"1000000000000", XMR, "1 XMR"},
		{"21000000000000000", ETH, "0.021000000000000000 ETH"},
		// Above 2^53: must not lose the low digits.
		{"123456789012345678901", ETH, "123.456789012345678901 ETH"},
		{"9007199254740993", ETH, "0.009007199254740993 ETH"},
	}

	for _, tt := range tests {
		result := ToDisplay(mustRaw(t, tt.raw), tt.code)
		if result != tt.expected {
			t.Errorf("ToDisplay(%s, %s) = %q; want %q", tt.raw, tt.code, result, tt.expected)
		}
	}
}

func TestToDisplay_UnknownCodeUsesDefaultScale(t *testing.T) {
	raw := mustRaw(t, "123456789")
	assert.Equal(t, "1.23456789 ZZZ", ToDisplay(raw, "ZZZ"))

	zw, zf := Split(raw, Currency("ZZZ").Scale())
	bw, bf := Split(raw, BTC.Scale())
	assert.Equal(t, bw.Dec(), zw.Dec())
	assert.Equal(t, bf.Dec(), zf.Dec())
}

func TestToDisplay_FractionWidthMatchesScale(t *testing.T) {
	for _, c := range All() {
		raw := mustRaw(t, "1000000000000000000000000000000000000001")
		out := strings.TrimSuffix(ToDisplay(raw, c), " "+string(c))
		parts := strings.Split(out, ".")
		require.Len(t, parts, 2, c)
		assert.Len(t, parts[1], c.Scale(), c)
	}
}

func TestToRaw(t *testing.T) {
	tests := []struct {
		input    string
		code     Currency
		expected string
	}{
		{"1.5", BTC, "150000000"},
		{"0.00000001", BTC, "1"},
		{"0.000000019", BTC, "1"}, // floored
		{"1", ETH, "1000000000000000000"},
		{"123.456789012345678901", ETH, "123456789012345678901"},
		{"0.1", USDC, "100000"},
		{" 2 ", DOGE, "200000000"},
		{"0", LTC, "0"},
		{"1.5", "ZZZ", "150000000"},
	}

	for _, tt := range tests {
		r, err := ToRaw(tt.input, tt.code)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, r.String(), tt.input)
	}
}

func TestToRaw_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "1.2.3", "NaN", "Inf", "1e8", "1E-2", "1e50000000", "1e100000"} {
		_, err := ToRaw(in, BTC)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestToRaw_Overflow(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		_, err := ToRaw(strings.Repeat("9", 200), ETH)
		done <- err
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrInvalidAmount)
		assert.Less(t, len(err.Error()), 100)
	case <-time.After(time.Second):
		t.Fatal("ToRaw did not return")
	}

	r, err := ToRaw("1"+strings.Repeat("0", 60), BTC)
	require.NoError(t, err)
	assert.Equal(t, "1"+strings.Repeat("0", 68), r.String())

	_, err = ToRaw("1"+strings.Repeat("0", 71), BTC)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRawJSON_ExponentBalance(t *testing.T) {
	var r Raw
	err := json.Unmarshal([]byte(`"1e50000000 BTC"`), &r)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRoundTrip(t *testing.T) {
	inputs := map[Currency][]string{
		BTC:  {"1.5", "0.12345678", "21000000"},
		ETH:  {"0.000000000000000001", "98765.432109876543210987"},
		USDC: {"1000", "0.000001"},
		XMR:  {"3.141592653589"},
	}
	for code, list := range inputs {
		for _, in := range list {
			r, err := ToRaw(in, code)
			require.NoError(t, err)
			display := strings.TrimSuffix(ToDisplay(r, code), " "+string(code))
			got, err := decimal.NewFromString(display)
			require.NoError(t, err)
			want := decimal.RequireFromString(in)
			assert.True(t, want.Equal(got), "%s %s -> %s", in, code, display)
		}
	}
}

func TestRawJSON(t *testing.T) {
	var payload struct {
		A Raw `json:"a"`
		B Raw `json:"b"`
		C Raw `json:"c"`
		D Raw `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a": 123456789012345678901, "b": "42", "c": "1.5 BTC", "d": "10000 DOGE"}`), &payload)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901", payload.A.String())
	assert.Equal(t, "42", payload.B.String())
	assert.Equal(t, "150000000", payload.C.String())
	assert.Equal(t, "1000000000000", payload.D.String())

	out, err := json.Marshal(payload.A)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901", string(out))

	var bad Raw
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`"-3"`), &bad))
}

func TestRawFromBig(t *testing.T) {
	_, err := RawFromBig(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	huge := new(big.Int).Lsh(big.NewInt(1), 260)
	_, err = RawFromBig(huge)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	r, err := RawFromBig(big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Cmp(NewRaw(7)))
}

func TestDecimal(t *testing.T) {
	r := mustRaw(t, "1500000000000000000")
	assert.Equal(t, "1.5", r.Decimal(ETH).String())
}

func TestParseCurrency(t *testing.T) {
	c, ok := ParseCurrency(" eth ")
	assert.True(t, ok)
	assert.Equal(t, ETH, c)
	assert.Equal(t, "Ethereum", c.Name())

	c, ok = ParseCurrency("zzz")
	assert.False(t, ok)
	assert.Equal(t, DefaultScale, c.Scale())
	assert.Equal(t, "ZZZ", c.Name())
}

func FuzzToRawToDisplay(f *testing.F) {
	f.Add(uint64(1), uint64(5), uint8(0))
	f.Add(uint64(21000000), uint64(99999999), uint8(1))
	f.Add(uint64(0), uint64(1), uint8(2))
	f.Fuzz(func(t *testing.T, whole, frac uint64, idx uint8) {
		code := currencies[int(idx)%len(currencies)]
		scale := code.Scale()
		fs := new(big.Int).SetUint64(frac).String()
		if len(fs) > scale {
			fs = fs[:scale]
		}
		in := new(big.Int).SetUint64(whole).String() + "." + fs
		r, err := ToRaw(in, code)
		if err != nil {
			t.Fatalf("ToRaw(%q): %v", in, err)
		}
		display := strings.TrimSuffix(ToDisplay(r, code), " "+string(code))
		got := decimal.RequireFromString(display)
		if !got.Equal(decimal.RequireFromString(in)) {
			t.Fatalf("round trip %q -> %q", in, display)
		}
	})
}
