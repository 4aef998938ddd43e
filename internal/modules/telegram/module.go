package telegram

import (
	"futures_bot/internal/modules/config"
	"futures_bot/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			func(cfg *config.Config) (notify.Notifier, error) {
				t, err := notify.NewTelegram(cfg.Telegram.Token)
				if err != nil {
					return nil, err
				}
				return t, nil
			},
		),
	)
}
