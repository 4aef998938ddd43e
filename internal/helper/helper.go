package helper

import (
	"math"
	"strconv"
	"strings"
)

// RoundTo округляет v до decimals знаков после запятой.
// decimals < 0 трактуем как 0: меньше целых единиц точность не уменьшаем.
func RoundTo(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	p := math.Pow10(decimals)
	return math.Round(v*p+1e-12) / p
}

// CountDecimals — количество значащих знаков после запятой у шага цены/объёма.
// Например 0.001 -> 3, 1 -> 0, 0.5 -> 1.
func CountDecimals(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}

// FormatFloat — компактная запись числа для тела запроса к бирже,
// без экспоненты и хвостовых нулей.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
