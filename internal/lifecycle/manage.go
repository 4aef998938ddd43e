package lifecycle

import (
	"context"
	"math"
	"time"

	"futures_bot/internal/helper"
	"futures_bot/internal/models"
	"futures_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// HandleManage — отсоединённый цикл сопровождения позиции. Живёт неделями,
// чекпоинтится на каждую итерацию и переживает рестарты воркера. Ошибка
// одной итерации не валит цикл: следующая итерация начинает с чистого листа.
func (s *Service) HandleManage(ctx context.Context, taskID string, raw []byte) error {
	var mp models.ManageParams
	if err := sonic.Unmarshal(raw, &mp); err != nil {
		return errors.Wrap(err, "decode manage params")
	}
	p := mp.Trade

	gw := s.exchanges(p.APIKey, p.APISecret)
	s.market.Watch(p.Symbol, p.Timeframe)

	ms := models.ManageState{TrailingStop: p.StopPrice, ATRValue: p.ATRValue}
	ok, err := s.sched.LoadState(ctx, taskID, &ms)
	if err != nil {
		return err
	}
	if ok {
		logger.Info("manage %s: resumed, trailing stop %v", taskID, ms.TrailingStop)
	}
	if ms.StartedAt.IsZero() {
		ms.StartedAt = time.Now().UTC()
	}

	wait := time.Duration(mp.WaitSeconds) * time.Second
	// потолок отсчитывается от старта цикла, рестарты процесса его не сдвигают
	deadline := ms.StartedAt.Add(time.Duration(s.cfg.ManageMaxWeeks) * 7 * 24 * time.Hour)

	for !ms.Finished {
		if time.Now().After(deadline) {
			logger.Critical("manage %s: position still open after %d weeks, giving up", taskID, s.cfg.ManageMaxWeeks)
			break
		}

		s.manageIteration(ctx, gw, mp, &ms)

		if err := s.sched.SaveState(ctx, taskID, &ms); err != nil {
			logger.Error("manage %s: checkpoint failed: %v", taskID, err)
		}
		if ms.Finished {
			break
		}
		if err := s.sched.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// manageIteration поглощает любой исход одной итерации, включая панику.
func (s *Service) manageIteration(ctx context.Context, gw Exchange, mp models.ManageParams, ms *models.ManageState) {
	defer func() {
		if r := recover(); r != nil {
			logger.Critical("manage %s/%s: panic in iteration: %v", mp.Trade.User, mp.Trade.Symbol, r)
		}
	}()
	if err := s.iterate(ctx, gw, mp, ms); err != nil {
		logger.Critical("manage %s/%s: iteration failed: %v", mp.Trade.User, mp.Trade.Symbol, err)
	}
}

func (s *Service) iterate(ctx context.Context, gw Exchange, mp models.ManageParams, ms *models.ManageState) error {
	p := mp.Trade

	var pos *models.Position
	if err := loosePolicy.Do(ctx, "open_position", func() error {
		var e error
		pos, e = gw.OpenPosition(ctx, p.Symbol)
		return e
	}); err != nil {
		return err
	}

	if pos == nil {
		// Позиции нет: либо её закрыл биржевой стоп, либо вход ещё не
		// отразился в positionRisk. Различаем по статусу algo-ордера.
		var algoStatus models.AlgoStatus
		if err := loosePolicy.Do(ctx, "query_stop", func() error {
			var e error
			algoStatus, e = gw.QueryStop(ctx, p.Symbol, mp.AlgoID)
			return e
		}); err != nil {
			return err
		}
		if !algoStatus.Terminal() {
			return nil
		}
		s.notifier.Sendf(ctx, p.ChatID, "Position closed on %s👀", p.Symbol)
		ms.Finished = true
		return nil
	}

	price := pos.MarkPrice
	takeProfit := takeProfitPrice(pos.EntryPrice, ms.ATRValue, p.TakeProfitATRMul, p.Side)

	s.journal.Append(models.TradeRecord{
		Symbol:       p.Symbol,
		Position:     positionLabel(p.Side),
		Leverage:     p.Leverage,
		CurrentPrice: price,
		PositionSize: pos.Size,
		EntryPrice:   pos.EntryPrice,
		Profit:       pos.UnrealizedPnL,
		TrailingStop: ms.TrailingStop,
		TakeProfit:   takeProfit,
		User:         p.User,
		Timestamp:    time.Now().UTC(),
	})

	// Закрывающая лимитка уже в стакане: только следим за ней, пока позиция
	// не исчезнет. Завершает цикл исключительно детект закрытия выше.
	if ms.ExitOrderID != 0 {
		return s.watchExit(ctx, gw, p, ms)
	}

	if !ms.TakeProfitTriggered {
		if ms.TakeProfitOrderID != 0 {
			if err := s.watchTakeProfit(ctx, gw, p, ms); err != nil {
				return err
			}
		} else if crossedTakeProfit(price, takeProfit, p.Side) {
			if err := s.submitTakeProfit(ctx, gw, p, pos, ms); err != nil {
				return err
			}
		}
	}

	if crossedTrailingStop(price, ms.TrailingStop, p.Side) {
		return s.closeRemainder(ctx, gw, p, pos, ms)
	}

	// Трейлинг не пробит: освежаем ATR и подтягиваем стоп за ценой.
	if atr, err := s.market.LatestATR(ctx, p.Symbol, p.Timeframe, p.ATRLength); err != nil {
		logger.Error("%s: atr refresh failed, keeping %v: %v", p.Symbol, ms.ATRValue, err)
	} else {
		ms.ATRValue = atr
	}
	ms.TrailingStop = ratchetTrailingStop(price, ms.TrailingStop, ms.ATRValue, p.TakeProfitATRMul, p.Side)
	return nil
}

// watchTakeProfit следит за выставленной лимиткой частичной фиксации.
// Висящий дольше бюджета итераций ордер снимается, чтобы на следующем
// пересечении перевыставиться по свежему стакану.
func (s *Service) watchTakeProfit(ctx context.Context, gw Exchange, p models.TradeParams, ms *models.ManageState) error {
	var status models.OrderStatus
	if err := loosePolicy.Do(ctx, "query_order", func() error {
		var e error
		status, e = gw.QueryOrder(ctx, p.Symbol, ms.TakeProfitOrderID)
		return e
	}); err != nil {
		return err
	}

	switch {
	case status == models.OrderStatusFilled:
		ms.TakeProfitTriggered = true
		ms.TakeProfitOrderID = 0
		ms.TakeProfitPending = 0
		s.notifier.Sendf(ctx, p.ChatID, "Take profit taken on %s💰", p.Symbol)
	case status.Terminal():
		// снят или истёк на стороне биржи
		ms.TakeProfitOrderID = 0
		ms.TakeProfitPending = 0
	default:
		ms.TakeProfitPending++
		if ms.TakeProfitPending >= s.cfg.TakeProfitPendingMax {
			return s.cancelTakeProfit(ctx, gw, p, ms)
		}
	}
	return nil
}

// submitTakeProfit выставляет reduce-only лимитку на половину позиции.
func (s *Service) submitTakeProfit(ctx context.Context, gw Exchange, p models.TradeParams, pos *models.Position, ms *models.ManageState) error {
	half := helper.RoundTo(math.Abs(pos.Size)/2, p.QuantityDecimals)
	if half <= 0 {
		ms.TakeProfitTriggered = true
		return nil
	}

	book, err := s.orderBook(ctx, gw, p.Symbol, loosePolicy)
	if err != nil {
		return err
	}
	exitSide := p.Side.Opposite()
	req := models.OrderRequest{
		Symbol:      p.Symbol,
		Side:        exitSide,
		Type:        models.OrderLimit,
		Quantity:    half,
		Price:       exitPrice(book, exitSide),
		TimeInForce: "GTC",
		ReduceOnly:  true,
	}

	orderID, err := s.submitWithPrecision(ctx, gw, req, p.QuantityDecimals, loosePolicy)
	if err != nil {
		return err
	}
	ms.TakeProfitOrderID = orderID
	ms.TakeProfitPending = 0
	logger.Info("%s: take profit order %d placed at %v", p.Symbol, orderID, req.Price)
	return nil
}

// cancelTakeProfit снимает зависшую лимитку. Гонка cancel-после-fill
// приходит кодом ALREADY_FILLED и означает, что тейк всё-таки взят.
func (s *Service) cancelTakeProfit(ctx context.Context, gw Exchange, p models.TradeParams, ms *models.ManageState) error {
	err := cancelPolicy.Do(ctx, "cancel_order", func() error {
		_, e := gw.CancelOrder(ctx, p.Symbol, ms.TakeProfitOrderID)
		return e
	})
	if err != nil {
		if models.Code(err) != models.CodeAlreadyFilled {
			return err
		}
		ms.TakeProfitTriggered = true
		s.notifier.Sendf(ctx, p.ChatID, "Take profit taken on %s💰", p.Symbol)
	}
	ms.TakeProfitOrderID = 0
	ms.TakeProfitPending = 0
	return nil
}

// closeRemainder выставляет закрывающую reduce-only лимитку на весь остаток
// позиции с жизнью в десять минут. Цикл она не завершает: закрытие
// констатирует только детект исчезнувшей позиции на следующих итерациях.
func (s *Service) closeRemainder(ctx context.Context, gw Exchange, p models.TradeParams, pos *models.Position, ms *models.ManageState) error {
	if ms.TakeProfitOrderID != 0 {
		if err := s.cancelTakeProfit(ctx, gw, p, ms); err != nil {
			return err
		}
	}

	book, err := s.orderBook(ctx, gw, p.Symbol, loosePolicy)
	if err != nil {
		return err
	}
	exitSide := p.Side.Opposite()
	req := models.OrderRequest{
		Symbol:     p.Symbol,
		Side:       exitSide,
		Type:       models.OrderLimit,
		Quantity:   math.Abs(pos.Size),
		Price:      exitPrice(book, exitSide),
		ReduceOnly: true,
		GoodTill:   time.Now().Add(10 * time.Minute),
	}

	orderID, err := s.submitWithPrecision(ctx, gw, req, p.QuantityDecimals, loosePolicy)
	if err != nil {
		return err
	}
	ms.ExitOrderID = orderID
	logger.Info("%s: trailing stop broken at %v, exit order %d placed at %v", p.Symbol, ms.TrailingStop, orderID, req.Price)
	return nil
}

// watchExit следит за закрывающей лимиткой. Исполненную подтвердит детект
// закрытия; истёкшую или снятую без исполнения перевыставит следующее
// пересечение трейлинга по свежему стакану.
func (s *Service) watchExit(ctx context.Context, gw Exchange, p models.TradeParams, ms *models.ManageState) error {
	var status models.OrderStatus
	if err := loosePolicy.Do(ctx, "query_order", func() error {
		var e error
		status, e = gw.QueryOrder(ctx, p.Symbol, ms.ExitOrderID)
		return e
	}); err != nil {
		return err
	}
	if status.Terminal() && status != models.OrderStatusFilled {
		ms.ExitOrderID = 0
	}
	return nil
}

func positionLabel(side models.Side) string {
	if side == models.SideBuy {
		return "Long"
	}
	return "Short"
}
