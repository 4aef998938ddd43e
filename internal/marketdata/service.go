package marketdata

import (
	"context"

	"futures_bot/internal/models"
)

type CandleSource interface {
	RecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

type CandleCache interface {
	Watch(symbol, timeframe string)
	Candles(symbol, timeframe string) []models.Candle
}

// Service отдаёт свежий ATR: сначала из ws-кеша, при нехватке баров — REST.
type Service struct {
	cache CandleCache
	rest  CandleSource
}

func New(cache CandleCache, rest CandleSource) *Service {
	return &Service{cache: cache, rest: rest}
}

// Watch подписывает символ в ws-кеше, чтобы следующие итерации
// не ходили за свечами по REST.
func (s *Service) Watch(symbol, timeframe string) {
	if s.cache != nil {
		s.cache.Watch(symbol, timeframe)
	}
}

func (s *Service) LatestATR(ctx context.Context, symbol, timeframe string, length int) (float64, error) {
	if s.cache != nil {
		cached := s.cache.Candles(symbol, timeframe)
		if v, err := LatestATR(cached, length); err == nil {
			return v, nil
		}
	}

	candles, err := s.rest.RecentCandles(ctx, symbol, timeframe, length*3+2)
	if err != nil {
		return 0, err
	}
	return LatestATR(candles, length)
}
