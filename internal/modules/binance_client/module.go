package binance_client

import (
	"futures_bot/internal/modules/binance_client/service"
	"futures_bot/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("binance_client",
		fx.Provide(
			func(cfg *config.Config) *service.Factory {
				return service.NewFactory(cfg.Binance.BaseURL)
			},
		),
	)
}
