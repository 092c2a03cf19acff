package billing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	cases := map[string]int64{
		"":      0,
		"   ":   0,
		"abc":   0,
		"10":    10,
		" 7 ":   7,
		"12abc": 12,
		"10.9":  10,
		"-3":    -3,
		"+4":    4,
		"-":     0,
		"99999999999999999999": 0,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseQuantity(Numeric(in)), "input %q", in)
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]float64{
		"":         0,
		"x1":       0,
		"100":      100,
		"100.5":    100.5,
		".5":       0.5,
		"5.":       5,
		"2e3":      2000,
		"2e":       2,
		"3.5kg":    3.5,
		"Infinity": 0,
		"NaN":      0,
		"1e400":    0,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseAmount(Numeric(in)), "input %q", in)
	}
}

func TestParseRate(t *testing.T) {
	require.Equal(t, 0.0, ParseRate(""))
	require.Equal(t, 0.0, ParseRate("nope"))
	require.InDelta(t, 0.18, ParseRate("18"), 1e-12)
	require.InDelta(t, 0.025, ParseRate("2.5"), 1e-12)
}

func TestNumericUnmarshal(t *testing.T) {
	var row struct {
		A Numeric `json:"a"`
		B Numeric `json:"b"`
		C Numeric `json:"c"`
		D Numeric `json:"d"`
		E Numeric `json:"e"`
	}
	err := json.Unmarshal([]byte(`{"a":"10","b":12.5,"c":null,"d":true,"e":{"x":1}}`), &row)
	require.NoError(t, err)
	require.Equal(t, Numeric("10"), row.A)
	require.Equal(t, Numeric("12.5"), row.B)
	require.True(t, row.C.IsBlank())
	require.True(t, row.D.IsBlank())
	require.True(t, row.E.IsBlank())

	out, err := json.Marshal(row.B)
	require.NoError(t, err)
	require.JSONEq(t, `"12.5"`, string(out))
}

func TestNumericUnmarshalExponentNumbers(t *testing.T) {
	var line LineItemDraft
	require.NoError(t, json.Unmarshal([]byte(`{"quantity":1e2,"rate":1.5e1,"sgstRate":9E0,"igstRate":1e400}`), &line))
	require.Equal(t, Numeric("100"), line.Quantity)
	require.Equal(t, Numeric("15"), line.Rate)
	require.Equal(t, Numeric("9"), line.SGSTRate)
	require.True(t, line.IGSTRate.IsBlank())

	priced := PriceLineItem(line)
	require.InDelta(t, 1500.0, priced.BaseAmount(), delta)
	require.InDelta(t, 135.0, priced.SGSTAmount, delta)
	require.InDelta(t, 1635.0, priced.TotalAmount, delta)
}
