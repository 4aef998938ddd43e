package binance_ws

import (
	"context"
	"futures_bot/internal/modules/binance_ws/service"
	"futures_bot/internal/modules/config"

	"go.uber.org/fx"
)

// Module поднимает стример свечей фьючерсного рынка.
func Module() fx.Option {
	return fx.Module("binance_ws",
		fx.Provide(
			func(cfg *config.Config) *service.Streamer {
				return service.NewStreamer(cfg.Binance.WSURL)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Streamer) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go s.Run(runCtx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
