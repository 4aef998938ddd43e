package models

import "fmt"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Dir возвращает знак направления: +1 для лонга, -1 для шорта.
// Все сравнения цен в трейлинге/тейке пишутся через него, без зеркальных веток.
func (s Side) Dir() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

type OrderType string

const (
	OrderLimit  OrderType = "LIMIT"
	OrderMarket OrderType = "MARKET"
)

// TradeParams — неизменяемое намерение по одной позиции. Создаётся один раз
// при диспатче; в цикле управления меняется только рабочая копия ATR.
type TradeParams struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`

	User   string `json:"user"`
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`

	Quantity         float64 `json:"quantity"`
	QuantityDecimals int     `json:"quantity_decimals"`
	StopPrice        float64 `json:"stop_price"`

	ATRValue  float64 `json:"atr_value"`
	ATRLength int     `json:"atr_length"`
	Timeframe string  `json:"timeframe"`

	OrderType OrderType `json:"order_type"`
	Leverage  int       `json:"leverage"`

	TakeProfitATRMul float64 `json:"atr_take_profit_mul"`
	WaitSeconds      int     `json:"wait_time_seconds"`

	StrategyName string `json:"strategy_name"`
	ChatID       int64  `json:"chat_id"`
}

func (p TradeParams) Identity() TradeIdentity {
	return TradeIdentity{Strategy: p.StrategyName, User: p.User, Symbol: p.Symbol}
}

func (p TradeParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("trade params: empty symbol")
	}
	if !p.Side.Valid() {
		return fmt.Errorf("trade params: unknown side %q", p.Side)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("trade params: quantity <= 0")
	}
	if p.StopPrice <= 0 {
		return fmt.Errorf("trade params: stop price <= 0")
	}
	if p.OrderType != OrderLimit && p.OrderType != OrderMarket {
		return fmt.Errorf("trade params: unknown order type %q", p.OrderType)
	}
	return nil
}

// TradeIdentity — ключ дедупликации жизненного цикла: на тройку
// {стратегия, юзер, символ} одновременно живёт максимум один воркфлоу.
type TradeIdentity struct {
	Strategy string
	User     string
	Symbol   string
}

func (id TradeIdentity) String() string {
	return id.Strategy + "-" + id.User + "-" + id.Symbol
}

// ManageID — ключ отсоединённого цикла управления позицией.
func (id TradeIdentity) ManageID() string {
	return "manage-" + id.User + "-" + id.Symbol
}
