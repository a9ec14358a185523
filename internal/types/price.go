package types

import (
	"strconv"
	"strings"
)

// ParsePrice normalizes a raw money string ("$1,250,000", "500000") to a
// float. The second return value is false when the input carries no
// parseable number.
func ParsePrice(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
