package helper

import (
	"math"
	"strings"
)

// MarketID converts a unified symbol like "SOL/USDC:USDC" into the
// exchange's instrument id ("SOLUSDC").
func MarketID(symbol string) string {
	s := symbol
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "/", "")
	return strings.ToUpper(s)
}

func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "60m", "1h":
		return "1h"
	case "24h", "1d":
		return "1d"
	default:
		return s
	}
}

// RoundDownToPrecision truncates toward zero at the given number of
// decimal places.
func RoundDownToPrecision(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	factor := math.Pow10(decimals)
	return math.Trunc(v*factor+1e-9) / factor
}
