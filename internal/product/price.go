package product

import (
	"regexp"
	"strings"
)

var (
	numericPriceRE = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	priceRunRE     = regexp.MustCompile(`[0-9][0-9.,]*`)
	decimalCommaRE = regexp.MustCompile(`^[0-9]+,[0-9]{2}$`)
)

func IsNumericPrice(s string) bool {
	return numericPriceRE.MatchString(strings.TrimSpace(s))
}

// NormalizePrice pulls the first digits-and-decimal-point run out of s.
// A single comma followed by exactly two digits, with no dot, is a decimal
// comma ("12,50"); any other comma is a thousands separator. Returns "" when
// s holds no number.
func NormalizePrice(s string) string {
	m := priceRunRE.FindString(s)
	if m == "" {
		return ""
	}
	if decimalCommaRE.MatchString(m) {
		m = strings.Replace(m, ",", ".", 1)
	}
	m = strings.ReplaceAll(m, ",", "")
	m = strings.TrimRight(m, ".")

	// "1.234.56" style leftovers: keep the last dot as the decimal separator.
	if strings.Count(m, ".") > 1 {
		last := strings.LastIndex(m, ".")
		m = strings.ReplaceAll(m[:last], ".", "") + m[last:]
	}
	if !IsNumericPrice(m) {
		return ""
	}
	return m
}
