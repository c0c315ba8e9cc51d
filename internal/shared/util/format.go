package util

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count as "1.5 MB". Values keep at most two
// decimals with trailing zeros removed.
func FormatFileSize(bytes float64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(bytes) / math.Log(1024)))
	if i < 0 {
		i = 0
	}
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	value := Round(bytes/math.Pow(1024, float64(i)), 2)
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Fixed formats v with exactly the given number of decimals.
func Fixed(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}

// Percent returns part/total*100, or 0 when total is zero.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
