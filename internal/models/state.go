package models

import "time"

// Phase — шаг конечного автомата жизненного цикла сделки.
// Чекпоинтится после каждого перехода, процесс можно убивать в любой момент.
type Phase string

const (
	PhaseLeverage  Phase = "LEVERAGE"
	PhaseEnter     Phase = "ENTER"
	PhaseAwaitFill Phase = "AWAIT_FILL"
	PhaseStop      Phase = "STOP"
	PhaseManage    Phase = "MANAGE"
	PhaseDone      Phase = "DONE"
)

type LifecycleState struct {
	Phase     Phase  `json:"phase"`
	OrderID   int64  `json:"order_id"`
	AlgoID    int64  `json:"algo_id"`
	FillPolls int    `json:"fill_polls"`
	Outcome   string `json:"outcome"`
}

// ManageState — состояние цикла управления позицией, чекпоинт на каждую
// итерацию. TrailingStop двигается только в сторону позиции.
type ManageState struct {
	StartedAt           time.Time `json:"started_at"`
	TrailingStop        float64   `json:"trailing_stop_price"`
	TakeProfitOrderID   int64     `json:"take_profit_order_id"` // 0 — ордера нет
	TakeProfitTriggered bool      `json:"take_profit_triggered"`
	TakeProfitPending   int       `json:"take_profit_pending"`
	ExitOrderID         int64     `json:"exit_order_id"` // закрывающая лимитка после пробоя трейлинга
	ATRValue            float64   `json:"atr_value"`
	Finished            bool      `json:"finished"`
}

// ManageParams — вход отсоединённого цикла управления.
type ManageParams struct {
	Trade       TradeParams `json:"trade_params"`
	OrderID     int64       `json:"order_id"`
	AlgoID      int64       `json:"algo_id"`
	WaitSeconds int         `json:"wait_seconds"`
}

// TradeRecord — строка журнала одной итерации управления позицией.
type TradeRecord struct {
	Symbol        string    `json:"symbol"`
	Position      string    `json:"position"` // Long | Short
	Leverage      int       `json:"leverage"`
	CurrentPrice  float64   `json:"current_price"`
	PositionSize  float64   `json:"position_size"`
	EntryPrice    float64   `json:"current_entry_price"`
	Profit        float64   `json:"current_profit"`
	TrailingStop  float64   `json:"trailing_stop_price"`
	TakeProfit    float64   `json:"take_profit_price"`
	User          string    `json:"user"`
	Timestamp     time.Time `json:"timestamp"`
}
