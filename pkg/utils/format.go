// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatPrice formats a price at the instrument's tick precision.
func FormatPrice(v float64, precision int) string {
	if precision < 0 {
		precision = 2
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// FormatSignedPercent formats a percentage with an explicit sign.
func FormatSignedPercent(value float64) string {
	return fmt.Sprintf("%+.2f%%", value)
}

// FormatPercentPtr formats an optional percentage; absent values render
// as a dash rather than a fabricated number.
func FormatPercentPtr(value float64, ok bool) string {
	if !ok || math.IsNaN(value) {
		return "-"
	}
	return FormatSignedPercent(value)
}

// FormatAmount formats a yuan turnover in market-local units (亿/万).
func FormatAmount(x float64) string {
	switch {
	case x >= 1e8:
		return fmt.Sprintf("%.2f亿", x/1e8)
	case x >= 1e4:
		return fmt.Sprintf("%.2f万", x/1e4)
	default:
		return fmt.Sprintf("%.0f", x)
	}
}

// FormatVolume formats a share count in market-local units.
func FormatVolume(x float64) string {
	switch {
	case x >= 1e8:
		return fmt.Sprintf("%.2f亿股", x/1e8)
	case x >= 1e4:
		return fmt.Sprintf("%.2f万股", x/1e4)
	default:
		return fmt.Sprintf("%.0f股", x)
	}
}

// ShortCode returns the six-digit code of an exchange-prefixed symbol,
// e.g. "sh600158" -> "600158". Unprefixed input passes through.
func ShortCode(symbol string) string {
	if len(symbol) == 8 && (strings.HasPrefix(symbol, "sh") || strings.HasPrefix(symbol, "sz")) {
		return symbol[2:]
	}
	return symbol
}
