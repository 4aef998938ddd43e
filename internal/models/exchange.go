package models

import (
	"errors"
	"fmt"
	"time"
)

// OrderRequest — один ордер на бирже; roles entry/exit различаются только
// флагом ReduceOnly.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Quantity    float64
	Price       float64 // только для LIMIT
	TimeInForce string
	ReduceOnly  bool
	GoodTill    time.Time // необязательный срок жизни ордера
}

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired, OrderStatusRejected:
		return true
	}
	return false
}

type AlgoStatus string

const (
	AlgoStatusNew      AlgoStatus = "NEW"
	AlgoStatusFinished AlgoStatus = "FINISHED"
	AlgoStatusExpired  AlgoStatus = "EXPIRED"
	AlgoStatusRejected AlgoStatus = "REJECTED"
	AlgoStatusCanceled AlgoStatus = "CANCELED"
)

func (s AlgoStatus) Terminal() bool {
	switch s {
	case AlgoStatusFinished, AlgoStatusExpired, AlgoStatusRejected, AlgoStatusCanceled:
		return true
	}
	return false
}

// Position — открытая позиция по одному символу. Size со знаком,
// как отдаёт биржа: отрицательный для шорта.
type Position struct {
	Symbol         string
	EntryPrice     float64
	MarkPrice      float64
	UnrealizedPnL  float64
	Size           float64
}

type BookLevel struct {
	Price float64
	Qty   float64
}

type OrderBook struct {
	Bids []BookLevel // по убыванию цены
	Asks []BookLevel // по возрастанию цены
}

type Candle struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// ErrCode — классификация ошибок биржи, от неё зависит политика ретраев.
type ErrCode string

const (
	CodeRateLimited       ErrCode = "RATE_LIMITED"
	CodeClockDrift        ErrCode = "CLOCK_DRIFT"
	CodePrecisionRejected ErrCode = "PRECISION_REJECTED"
	CodeAlreadyFilled     ErrCode = "ALREADY_FILLED"
	CodeOther             ErrCode = "OTHER"
)

type ExchangeError struct {
	Code    ErrCode
	APICode int
	Msg     string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange error %s (api=%d): %s", e.Code, e.APICode, e.Msg)
}

// Code достаёт класс ошибки из цепочки; всё неизвестное считается CodeOther.
func Code(err error) ErrCode {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return CodeOther
}
