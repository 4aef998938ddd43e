package sched

import (
	"context"
	"time"

	"futures_bot/internal/modules/config"
	"futures_bot/pkg/db"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("sched",
		fx.Provide(
			func(m *db.PgTxManager) Store { return NewPgStore(m) },
			NewRuntime,
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runtime, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					// цикл живёт до r.Stop(), который закрывает baseCtx
					go r.Run(context.Background(), time.Duration(cfg.SchedPollSeconds)*time.Second)
					return nil
				},
				OnStop: func(_ context.Context) error {
					r.Stop()
					return nil
				},
			})
		}),
	)
}
