package pricing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParsePercent extracts the first run of digits from a discount label such as
// "30%", "-30%" or "30". It returns 0 when no digits are present.
func ParsePercent(raw string) int64 {
	start := strings.IndexFunc(raw, isDigit)
	if start < 0 {
		return 0
	}
	end := start
	for end < len(raw) && isDigit(rune(raw[end])) {
		end++
	}
	v, err := strconv.ParseInt(raw[start:end], 10, 64)
	if err != nil {
		// overflow: far above any usable percentage
		return 100
	}
	return v
}

// SalePrice applies a product-level percentage discount to a reference price.
// Labels without digits, equal to zero or at/above 100 leave the price unchanged.
// The result is rounded half-up to whole currency units.
func SalePrice(reference Money, discount string) Money {
	reference = nonNegative(reference)
	pct := ParsePercent(discount)
	if pct <= 0 || pct >= 100 {
		return reference
	}
	keep := hundred.Sub(decimal.NewFromInt(pct))
	return decimal.NewFromInt(reference).Mul(keep).Div(hundred).Round(0).IntPart()
}

// PercentOf returns value*pct/100 rounded half-up.
func PercentOf(value Money, pct decimal.Decimal) Money {
	if value <= 0 || !pct.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(value).Mul(pct).Div(hundred).Round(0).IntPart()
}

// ParseAmount leniently parses a price string such as "৳1,200.50" or "700".
// Currency symbols and thousands separators are ignored; anything unparsable
// yields 0. Fractions are rounded half-up to whole units.
func ParseAmount(raw string) Money {
	var b strings.Builder
	seenDot := false
	for _, r := range raw {
		switch {
		case isDigit(r):
			b.WriteRune(r)
		case r == '.' && !seenDot && b.Len() > 0:
			seenDot = true
			b.WriteRune(r)
		case r == '.' && seenDot:
			// a second dot ends the number
			return roundAmount(b.String())
		}
	}
	return roundAmount(b.String())
}

func roundAmount(s string) Money {
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.Round(0).IntPart()
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
