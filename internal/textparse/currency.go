// Package textparse converts noisy listing text fields into typed values.
// Parsers never fail: an unrecognised input yields a missing value so one
// malformed listing cannot abort a whole batch.
package textparse

import (
	"strconv"
	"strings"
)

// ParseCurrency keeps only digits and decimal points from text and parses the
// remainder as a float. It reports false when nothing numeric is left or the
// remainder is not a valid number (e.g. "1.2.3").
// Examples:
//
//	"$31,500"     → 31500, true
//	"50,000 mi."  → 50000, true
//	"call dealer" → 0, false
func ParseCurrency(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
