package main

import (
	"context"
	"log"

	"futures_bot/internal/lifecycle"
	"futures_bot/internal/modules/binance_client"
	"futures_bot/internal/modules/binance_ws"
	"futures_bot/internal/modules/config"
	"futures_bot/internal/modules/health"
	"futures_bot/internal/modules/postgres"
	"futures_bot/internal/modules/telegram"
	"futures_bot/internal/sched"
	"futures_bot/pkg/logger"
	"futures_bot/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	logger.SetServiceName("futures-bot-worker")
	tracing.SetServiceName("futures-bot-worker")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		sched.Module(),
		binance_client.Module(),
		binance_ws.Module(),
		telegram.Module(),
		lifecycle.Module(),
		health.Module(),
		fx.Invoke(func(cfg *config.Config) {
			if cfg.Jaeger.Host == "" {
				return
			}
			_, _, err := tracing.InitTracer(tracing.Config{Host: cfg.Jaeger.Host, Port: cfg.Jaeger.Port})
			if err != nil {
				logger.Error("jaeger tracer init failed: %v", err)
			}
		}),
	)
	app.Run()
}
