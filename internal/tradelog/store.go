package tradelog

import (
	"context"
	"time"

	"futures_bot/internal/models"
	"futures_bot/pkg/db"
	"futures_bot/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Store — журнал итераций управления позицией.
type Store struct {
	db db.TxManager
}

func NewStore(m db.TxManager) *Store {
	return &Store{db: m}
}

// Append пишет запись fire-and-forget: итерация цикла управления не должна
// ни блокироваться на журнале, ни падать из-за него.
func (s *Store) Append(rec models.TradeRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
			_, err := tx.Exec(ctxTx,
				`INSERT INTO trade_log
					(symbol, position, leverage, current_price, position_size,
					 current_entry_price, current_profit, trailing_stop_price,
					 take_profit_price, "user", ts)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				rec.Symbol, rec.Position, rec.Leverage, rec.CurrentPrice, rec.PositionSize,
				rec.EntryPrice, rec.Profit, rec.TrailingStop, rec.TakeProfit,
				rec.User, rec.Timestamp,
			)
			return err
		})
		if err != nil {
			logger.Error("trade log append failed: %v", err)
		}
	}()
}

// Recent — последние записи журнала по пользователю, свежие первыми.
func (s *Store) Recent(ctx context.Context, user string, limit int) ([]models.TradeRecord, error) {
	rows, err := s.db.Conn().Query(ctx,
		`SELECT symbol, position, leverage, current_price, position_size,
		        current_entry_price, current_profit, trailing_stop_price,
		        take_profit_price, "user", ts
		 FROM trade_log WHERE "user" = $1 ORDER BY ts DESC LIMIT $2`,
		user, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query trade log")
	}
	defer rows.Close()

	var out []models.TradeRecord
	for rows.Next() {
		var rec models.TradeRecord
		if err := rows.Scan(
			&rec.Symbol, &rec.Position, &rec.Leverage, &rec.CurrentPrice, &rec.PositionSize,
			&rec.EntryPrice, &rec.Profit, &rec.TrailingStop, &rec.TakeProfit,
			&rec.User, &rec.Timestamp,
		); err != nil {
			return nil, errors.Wrap(err, "scan trade log row")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Latest — последняя запись по паре (пользователь, символ); nil, если записей нет.
func (s *Store) Latest(ctx context.Context, user, symbol string) (*models.TradeRecord, error) {
	var rec models.TradeRecord
	err := s.db.Conn().QueryRow(ctx,
		`SELECT symbol, position, leverage, current_price, position_size,
		        current_entry_price, current_profit, trailing_stop_price,
		        take_profit_price, "user", ts
		 FROM trade_log WHERE "user" = $1 AND symbol = $2 ORDER BY ts DESC LIMIT 1`,
		user, symbol,
	).Scan(
		&rec.Symbol, &rec.Position, &rec.Leverage, &rec.CurrentPrice, &rec.PositionSize,
		&rec.EntryPrice, &rec.Profit, &rec.TrailingStop, &rec.TakeProfit,
		&rec.User, &rec.Timestamp,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query latest trade log")
	}
	return &rec, nil
}
