package provider

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/width"
)

// ParseCount разбирает счётчик из JSON-значения.
func ParseCount(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f <= 0 || math.IsNaN(f) {
			return 0
		}
		return int64(f)
	case gjson.String:
		return ParseCountString(v.Str)
	default:
		return 0
	}
}

// ParseCountString разбирает строку вида "1.5万", "2k", "1,234".
// Неразборчивые и отрицательные значения дают 0.
func ParseCountString(raw string) int64 {
	s := strings.TrimSpace(width.Fold.String(raw))
	s = strings.ReplaceAll(s, ",", "")
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "万"):
		mult = 10000
		s = strings.TrimSuffix(s, "万")
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult = 1000
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	return int64(math.Floor(f*mult + 1e-6))
}
