package marketdata

import (
	"fmt"
	"math"

	"futures_bot/internal/models"
)

// ATR — Average True Range со сглаживанием Уайлдера.
// Возвращает ряд той же длины, что candles; значения до индекса length — NaN.
func ATR(candles []models.Candle, length int) []float64 {
	out := make([]float64, len(candles))
	for i := range out {
		out[i] = math.NaN()
	}
	if length <= 0 || len(candles) <= length {
		return out
	}

	tr := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for i := 1; i <= length; i++ {
		sum += tr[i]
	}
	out[length] = sum / float64(length)

	for i := length + 1; i < len(candles); i++ {
		out[i] = (out[i-1]*float64(length-1) + tr[i]) / float64(length)
	}
	return out
}

// LatestATR — значение ATR по предпоследнему бару: последний бар ещё может
// быть не закрыт у REST-источника, поэтому берём [-2], как и весь остальной код.
func LatestATR(candles []models.Candle, length int) (float64, error) {
	if len(candles) < length+2 {
		return 0, fmt.Errorf("atr: need at least %d candles, got %d", length+2, len(candles))
	}
	series := ATR(candles, length)
	v := series[len(series)-2]
	if math.IsNaN(v) || v <= 0 {
		return 0, fmt.Errorf("atr: no value at bar %d", len(series)-2)
	}
	return v, nil
}
