package lifecycle

import (
	"context"

	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
)

// placeStopProtection ставит биржевой условный STOP_MARKET на весь размер
// позиции. Пока он не размещён, позиция не защищена, поэтому политика fail-fast.
func (s *Service) placeStopProtection(ctx context.Context, gw Exchange, p models.TradeParams) (int64, error) {
	var algoID int64
	err := fastPolicy.Do(ctx, "submit_stop", func() error {
		var e error
		algoID, e = gw.SubmitStop(ctx, p.Symbol, p.Side, p.StopPrice, p.Quantity)
		return e
	})
	if err != nil {
		return 0, err
	}
	logger.Info("%s: stop protection %d placed at %v", p.Symbol, algoID, p.StopPrice)
	return algoID, nil
}
