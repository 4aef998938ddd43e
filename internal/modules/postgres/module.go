package postgres

import (
	"context"
	"fmt"
	"futures_bot/internal/modules/config"
	"futures_bot/pkg/db"

	"go.uber.org/fx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sched_tasks (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		params     JSONB NOT NULL,
		status     TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sched_checkpoints (
		task_id    TEXT PRIMARY KEY,
		state      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS trade_log (
		id                  BIGSERIAL PRIMARY KEY,
		symbol              TEXT NOT NULL,
		position            TEXT NOT NULL,
		leverage            INT NOT NULL,
		current_price       DOUBLE PRECISION NOT NULL,
		position_size       DOUBLE PRECISION NOT NULL,
		current_entry_price DOUBLE PRECISION NOT NULL,
		current_profit      DOUBLE PRECISION NOT NULL,
		trailing_stop_price DOUBLE PRECISION NOT NULL,
		take_profit_price   DOUBLE PRECISION NOT NULL,
		"user"              TEXT NOT NULL,
		ts                  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trade_log_user_symbol_ts
		ON trade_log ("user", symbol, ts DESC)`,
}

// Module регистрируем как fx-провайдер.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
		),
		fx.Invoke(func(ctx context.Context, m *db.PgTxManager) error {
			for _, stmt := range schema {
				if _, err := m.Conn().Exec(ctx, stmt); err != nil {
					return fmt.Errorf("failed to apply schema: %w", err)
				}
			}
			return nil
		}),
	)
}
