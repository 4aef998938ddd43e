package lifecycle

import "futures_bot/internal/models"

// Вся геометрия лонг/шорт сведена к знаку направления side.Dir():
// одна параметризованная система неравенств вместо зеркальных веток.

// takeProfitPrice — цена частичной фиксации: entry ± mul*ATR по стороне.
func takeProfitPrice(entryPrice, atrValue, mul float64, side models.Side) float64 {
	return entryPrice + side.Dir()*mul*atrValue
}

// crossedTakeProfit — цена дошла до уровня фиксации (≥ для лонга, ≤ для шорта).
func crossedTakeProfit(price, takeProfit float64, side models.Side) bool {
	return side.Dir()*(price-takeProfit) >= 0
}

// crossedTrailingStop — цена пробила трейлинг (≤ для лонга, ≥ для шорта).
func crossedTrailingStop(price, trailingStop float64, side models.Side) bool {
	return side.Dir()*(price-trailingStop) <= 0
}

// ratchetTrailingStop двигает трейлинг только в сторону позиции:
// кандидат price ∓ mul*ATR принимается, лишь когда он выгоднее прежнего.
func ratchetTrailingStop(price, prev, atrValue, mul float64, side models.Side) float64 {
	candidate := price - side.Dir()*mul*atrValue
	if side.Dir()*(candidate-prev) > 0 {
		return candidate
	}
	return prev
}
