package lifecycle

import (
	"context"

	"futures_bot/internal/models"
	"futures_bot/internal/sched"
)

// Exchange — контракт шлюза биржи, который потребляет жизненный цикл.
// Вызовы stateless, любой может упасть транзиентно или логически;
// классификация ошибок — через models.Code.
type Exchange interface {
	SubmitOrder(ctx context.Context, req models.OrderRequest) (int64, error)
	QueryOrder(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error)

	SubmitStop(ctx context.Context, symbol string, positionSide models.Side, triggerPrice, quantity float64) (int64, error)
	QueryStop(ctx context.Context, symbol string, algoID int64) (models.AlgoStatus, error)

	OpenPosition(ctx context.Context, symbol string) (*models.Position, error)
	OrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) (int, error)
}

// ExchangeFactory отдаёт клиента под ключи конкретного аккаунта.
type ExchangeFactory func(apiKey, apiSecret string) Exchange

// Substrate — потребляемый контракт подложки долговечного исполнения:
// запуск с дедупликацией по id, чекпоинты, отменяемый таймер.
type Substrate interface {
	sched.Starter
	sched.Timer
	sched.Checkpoints
}

// MarketData — коллаборатор рыночных данных для освежения ATR.
type MarketData interface {
	Watch(symbol, timeframe string)
	LatestATR(ctx context.Context, symbol, timeframe string, length int) (float64, error)
}

// TradeLog — журнал итераций; запись fire-and-forget.
type TradeLog interface {
	Append(rec models.TradeRecord)
}

// Notifier — best-effort уведомления пользователю.
type Notifier interface {
	Send(ctx context.Context, chatID int64, msg string)
	Sendf(ctx context.Context, chatID int64, format string, args ...any)
}
