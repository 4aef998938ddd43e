package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"futures_bot/internal/models"
	"futures_bot/internal/modules/config"
	"futures_bot/internal/sched"
	"futures_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

const (
	KindTrade  sched.Kind = "trade"
	KindManage sched.Kind = "manage"
)

// Service — оркестратор жизненного цикла сделки: конечный автомат фаз
// поверх долговечной подложки. Сам по себе stateless, всё состояние в
// чекпоинтах; процесс можно убивать на любой фазе.
type Service struct {
	cfg       *config.Config
	sched     Substrate
	exchanges ExchangeFactory
	market    MarketData
	journal   TradeLog
	notifier  Notifier
}

func New(cfg *config.Config, sub Substrate, exchanges ExchangeFactory, market MarketData, journal TradeLog, notifier Notifier) *Service {
	return &Service{
		cfg:       cfg,
		sched:     sub,
		exchanges: exchanges,
		market:    market,
		journal:   journal,
		notifier:  notifier,
	}
}

// StartTrade диспатчит новый жизненный цикл. Повторный диспатч той же
// тройки {стратегия, юзер, символ} при живой задаче — sched.ErrDuplicate.
func (s *Service) StartTrade(ctx context.Context, p models.TradeParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.sched.Start(ctx, p.Identity().String(), KindTrade, p)
}

// HandleTrade — тело задачи жизненного цикла: LEVERAGE -> ENTER ->
// AWAIT_FILL -> STOP -> MANAGE -> DONE, чекпоинт после каждого перехода.
func (s *Service) HandleTrade(ctx context.Context, taskID string, raw []byte) error {
	var p models.TradeParams
	if err := sonic.Unmarshal(raw, &p); err != nil {
		return errors.Wrap(err, "decode trade params")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	gw := s.exchanges(p.APIKey, p.APISecret)

	st := models.LifecycleState{Phase: PhaseStart(p)}
	ok, err := s.sched.LoadState(ctx, taskID, &st)
	if err != nil {
		return err
	}
	if ok {
		logger.Info("lifecycle %s: resumed at phase %s", taskID, st.Phase)
	}

	for st.Phase != models.PhaseDone {
		span, spanCtx := opentracing.StartSpanFromContext(ctx, "lifecycle."+strings.ToLower(string(st.Phase)))
		err := s.step(spanCtx, gw, p, taskID, &st)
		span.Finish()
		if err != nil {
			return err
		}
		if err := s.sched.SaveState(ctx, taskID, &st); err != nil {
			return err
		}
	}

	logger.Info("lifecycle %s: done, %s", taskID, st.Outcome)
	return nil
}

// PhaseStart — первая фаза автомата: без плеча сразу идём на вход.
func PhaseStart(p models.TradeParams) models.Phase {
	if p.Leverage > 0 {
		return models.PhaseLeverage
	}
	return models.PhaseEnter
}

func (s *Service) step(ctx context.Context, gw Exchange, p models.TradeParams, taskID string, st *models.LifecycleState) error {
	switch st.Phase {
	case models.PhaseLeverage:
		if err := fastPolicy.Do(ctx, "set_leverage", func() error {
			_, e := gw.SetLeverage(ctx, p.Symbol, p.Leverage)
			return e
		}); err != nil {
			return errors.Wrapf(err, "set leverage %s", p.Symbol)
		}
		st.Phase = models.PhaseEnter

	case models.PhaseEnter:
		orderID, err := s.enter(ctx, gw, p)
		if err != nil {
			return errors.Wrapf(err, "enter %s", p.Symbol)
		}
		st.OrderID = orderID
		if p.OrderType == models.OrderLimit {
			st.Phase = models.PhaseAwaitFill
		} else {
			// маркет исполняется сразу, ждать нечего
			s.notifyEntered(ctx, p)
			st.Phase = models.PhaseStop
		}

	case models.PhaseAwaitFill:
		return s.awaitFill(ctx, gw, p, st)

	case models.PhaseStop:
		algoID, err := s.placeStopProtection(ctx, gw, p)
		if err != nil {
			return errors.Wrapf(err, "place stop %s", p.Symbol)
		}
		st.AlgoID = algoID
		st.Phase = models.PhaseManage

	case models.PhaseManage:
		wait := p.WaitSeconds
		if wait <= 0 {
			wait = int(s.cfg.WaitInterval(p.Timeframe).Seconds())
		}
		if p.OrderType == models.OrderMarket {
			// маркет-вход уже исполнен, первая половина ожидания не нужна
			wait = (wait + 1) / 2
		}
		mp := models.ManageParams{Trade: p, OrderID: st.OrderID, AlgoID: st.AlgoID, WaitSeconds: wait}

		err := s.sched.Start(ctx, p.Identity().ManageID(), KindManage, mp)
		if err != nil && !errors.Is(err, sched.ErrDuplicate) {
			return errors.Wrap(err, "start manage task")
		}
		st.Outcome = "position management detached"
		st.Phase = models.PhaseDone

	default:
		return fmt.Errorf("lifecycle %s: unknown phase %q", taskID, st.Phase)
	}
	return nil
}

// awaitFill — один опрос лимитного входа за шаг автомата; счётчик опросов
// в чекпоинте, после рестарта ожидание продолжается, а не начинается заново.
func (s *Service) awaitFill(ctx context.Context, gw Exchange, p models.TradeParams, st *models.LifecycleState) error {
	if st.FillPolls > 0 {
		if err := s.sched.Sleep(ctx, s.fillPollInterval()); err != nil {
			return err
		}
	}

	var status models.OrderStatus
	err := fastPolicy.Do(ctx, "query_order", func() error {
		var e error
		status, e = gw.QueryOrder(ctx, p.Symbol, st.OrderID)
		return e
	})
	if err != nil {
		// статус недоступен, держать неподтверждённый ордер нельзя
		logger.Error("%s: query entry order %d: %v", p.Symbol, st.OrderID, err)
		return s.cancelEntry(ctx, gw, p, st)
	}

	if status == models.OrderStatusFilled {
		s.notifyEntered(ctx, p)
		st.Phase = models.PhaseStop
		return nil
	}

	st.FillPolls++
	if st.FillPolls >= s.maxFillPolls() {
		return s.cancelEntry(ctx, gw, p, st)
	}
	return nil
}

// cancelEntry снимает неисполненный вход. ALREADY_FILLED на отмене — гонка
// cancel-после-fill: вход состоялся, продолжаем на защиту.
func (s *Service) cancelEntry(ctx context.Context, gw Exchange, p models.TradeParams, st *models.LifecycleState) error {
	var status models.OrderStatus
	err := cancelPolicy.Do(ctx, "cancel_order", func() error {
		var e error
		status, e = gw.CancelOrder(ctx, p.Symbol, st.OrderID)
		return e
	})
	if err != nil {
		if models.Code(err) == models.CodeAlreadyFilled {
			s.notifyEntered(ctx, p)
			st.Phase = models.PhaseStop
			return nil
		}
		return errors.Wrapf(err, "cancel entry order %d", st.OrderID)
	}

	st.Outcome = fmt.Sprintf("entry order %d not filled, cancelled with status %s", st.OrderID, status)
	st.Phase = models.PhaseDone
	return nil
}

func (s *Service) notifyEntered(ctx context.Context, p models.TradeParams) {
	rocket := "🚀"
	if p.Side == models.SideSell {
		rocket = "☄️"
	}
	s.notifier.Sendf(ctx, p.ChatID, "New position started on %s %s", p.Symbol, rocket)
}

func (s *Service) fillPollInterval() time.Duration {
	return time.Duration(s.cfg.FillPollSeconds) * time.Second
}

func (s *Service) maxFillPolls() int {
	if s.cfg.FillPollSeconds <= 0 {
		return 1
	}
	n := s.cfg.FillWaitSeconds / s.cfg.FillPollSeconds
	if n < 1 {
		n = 1
	}
	return n
}
