package lifecycle

import (
	"futures_bot/internal/marketdata"
	"futures_bot/internal/modules/binance_client/service"
	binancews "futures_bot/internal/modules/binance_ws/service"
	"futures_bot/internal/modules/config"
	"futures_bot/internal/notify"
	"futures_bot/internal/sched"
	"futures_bot/internal/tradelog"
	"futures_bot/pkg/db"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(
			func(f *service.Factory) ExchangeFactory {
				return func(apiKey, apiSecret string) Exchange {
					return f.Client(apiKey, apiSecret)
				}
			},
			func(streamer *binancews.Streamer, f *service.Factory) *marketdata.Service {
				// REST-фоллбэк за свечами ходит по публичным ручкам, ключи не нужны
				return marketdata.New(streamer, f.Client("", ""))
			},
			func(m *db.PgTxManager) *tradelog.Store {
				return tradelog.NewStore(m)
			},
			func(cfg *config.Config, rt *sched.Runtime, exchanges ExchangeFactory, market *marketdata.Service, journal *tradelog.Store, notifier notify.Notifier) *Service {
				return New(cfg, rt, exchanges, market, journal, notifier)
			},
		),
		fx.Invoke(
			func(rt *sched.Runtime, s *Service) {
				rt.Register(KindTrade, s.HandleTrade)
				rt.Register(KindManage, s.HandleManage)
			},
		),
	)
}
