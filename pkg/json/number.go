package json

import (
	"fmt"
	"strconv"
	"strings"
)

// maxNumberScale bounds the digits an exponent may shift in either
// direction, matching the PostgreSQL numeric display limits.
const maxNumberScale = 16383

// CanonicalNumber rewrites a JSON number in plain decimal notation the way
// PostgreSQL prints numeric values: exponents are expanded, leading zeros
// removed, the fractional digits kept at their written scale, and negative
// zero printed without a sign.
//
//	1e3     -> 1000
//	1.50    -> 1.50
//	2.5E-3  -> 0.0025
//	-0.0    -> 0.0
func CanonicalNumber(raw string) (string, error) {
	s := raw
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	mantissa, exp := s, 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa = s[:i]
		e, err := strconv.Atoi(strings.TrimPrefix(s[i+1:], "+"))
		if err != nil || e > maxNumberScale || e < -maxNumberScale {
			return "", fmt.Errorf("json: number %q is out of range", raw)
		}
		exp = e
	}

	intPart, frac, _ := strings.Cut(mantissa, ".")
	digits := intPart + frac
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return "", fmt.Errorf("json: invalid number %q", raw)
	}

	// position of the decimal point within digits
	point := len(intPart) + exp

	var whole, fraction string
	switch {
	case point <= 0:
		whole = "0"
		fraction = strings.Repeat("0", -point) + digits
	case point >= len(digits):
		whole = digits + strings.Repeat("0", point-len(digits))
	default:
		whole = digits[:point]
		fraction = digits[point:]
	}

	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}

	var b strings.Builder
	b.Grow(len(whole) + len(fraction) + 2)
	if neg && strings.Trim(digits, "0") != "" {
		b.WriteByte('-')
	}
	b.WriteString(whole)
	if fraction != "" {
		b.WriteByte('.')
		b.WriteString(fraction)
	}
	return b.String(), nil
}
