// Package utils provides number formatting helpers used in log and
// notification text.
package utils

import (
	"math"
	"strconv"
	"strings"
)

var siSuffixes = []struct {
	threshold float64
	suffix    string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// Millify shortens n with an SI suffix, keeping at most precision decimals:
// 1000 -> "1K", 1500000 -> "1.5M". A negative precision means 2.
func Millify(n int, precision int) string {
	if precision < 0 {
		precision = 2
	}

	abs := math.Abs(float64(n))
	sign := ""
	if n < 0 {
		sign = "-"
	}

	for _, s := range siSuffixes {
		if abs >= s.threshold {
			return sign + trimDecimals(strconv.FormatFloat(abs/s.threshold, 'f', precision, 64)) + s.suffix
		}
	}
	return strconv.Itoa(n)
}

// SignedMillify is Millify with an explicit "+" for positive values, as
// used for point gains.
func SignedMillify(n int, precision int) string {
	if n > 0 {
		return "+" + Millify(n, precision)
	}
	return Millify(n, precision)
}

func trimDecimals(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	return strings.TrimRight(strings.TrimRight(s, "0"), ".")
}
