package billing

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric is a form value holding a number as text. It decodes from JSON
// strings, numbers and null, and encodes back as a JSON string.
type Numeric string

// UnmarshalJSON accepts "10", 10, null and any other JSON value. Values that are
// not strings or numbers decode as blank.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*n = Numeric(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err != nil {
		*n = ""
		return nil
	}
	*n = canonicalNumber(num)
	return nil
}

// canonicalNumber rewrites a JSON number token in plain decimal notation so
// that 1e2 is read as 100 rather than the prefix 1. Tokens outside the float64
// range decode as blank.
func canonicalNumber(num json.Number) Numeric {
	f, err := num.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return Numeric(strconv.FormatFloat(f, 'f', -1, 64))
}

// String returns the raw text.
func (n Numeric) String() string { return string(n) }

// IsBlank reports whether the value holds only whitespace.
func (n Numeric) IsBlank() bool { return strings.TrimSpace(string(n)) == "" }

// ParseQuantity reads the leading integer of v. Blank, non-numeric or
// out-of-range input yields 0.
func ParseQuantity(v Numeric) int64 {
	prefix := intPrefix(strings.TrimSpace(string(v)))
	if prefix == "" {
		return 0
	}
	n, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParseAmount reads the leading decimal number of v. Blank, non-numeric or
// non-finite input yields 0.
func ParseAmount(v Numeric) float64 {
	prefix := floatPrefix(strings.TrimSpace(string(v)))
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseRate converts a percentage such as "18" into the fraction 0.18. A
// missing or invalid rate is 0.
func ParseRate(v Numeric) float64 {
	frac := ParseAmount(v) / 100
	if math.IsNaN(frac) || math.IsInf(frac, 0) {
		return 0
	}
	return frac
}

func intPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == start {
		return ""
	}
	return s[:i]
}

func floatPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return ""
	}
	// exponent only counts when at least one digit follows it
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expStart := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > expStart {
			i = j
		}
	}
	return s[:i]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
