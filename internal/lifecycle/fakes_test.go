package lifecycle

import (
	"context"
	"fmt"
	"time"

	"futures_bot/internal/models"
	"futures_bot/internal/modules/config"
	"futures_bot/internal/sched"
	"futures_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeExchange — шлюз с подменяемыми ручками; не заданная ручка паникует,
// чтобы тест сразу показал неожиданный вызов.
type fakeExchange struct {
	submitOrder func(ctx context.Context, req models.OrderRequest) (int64, error)
	queryOrder  func(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error)
	cancelOrder func(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error)
	submitStop  func(ctx context.Context, symbol string, side models.Side, trigger, qty float64) (int64, error)
	queryStop   func(ctx context.Context, symbol string, algoID int64) (models.AlgoStatus, error)
	position    func(ctx context.Context, symbol string) (*models.Position, error)
	orderBook   func(ctx context.Context, symbol string, depth int) (*models.OrderBook, error)
	setLeverage func(ctx context.Context, symbol string, leverage int) (int, error)
}

func (f *fakeExchange) SubmitOrder(ctx context.Context, req models.OrderRequest) (int64, error) {
	return f.submitOrder(ctx, req)
}

func (f *fakeExchange) QueryOrder(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
	return f.queryOrder(ctx, symbol, orderID)
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
	return f.cancelOrder(ctx, symbol, orderID)
}

func (f *fakeExchange) SubmitStop(ctx context.Context, symbol string, side models.Side, trigger, qty float64) (int64, error) {
	return f.submitStop(ctx, symbol, side, trigger, qty)
}

func (f *fakeExchange) QueryStop(ctx context.Context, symbol string, algoID int64) (models.AlgoStatus, error) {
	return f.queryStop(ctx, symbol, algoID)
}

func (f *fakeExchange) OpenPosition(ctx context.Context, symbol string) (*models.Position, error) {
	return f.position(ctx, symbol)
}

func (f *fakeExchange) OrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	return f.orderBook(ctx, symbol, depth)
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) (int, error) {
	return f.setLeverage(ctx, symbol, leverage)
}

// memSub — подложка в памяти: мгновенный Sleep, чекпоинты в map.
type memSub struct {
	states  map[string][]byte
	started []startedTask
	dup     bool
}

type startedTask struct {
	id     string
	kind   sched.Kind
	params []byte
}

func newMemSub() *memSub {
	return &memSub{states: make(map[string][]byte)}
}

func (m *memSub) Start(ctx context.Context, id string, kind sched.Kind, params any) error {
	if m.dup {
		return sched.ErrDuplicate
	}
	raw, err := sonic.Marshal(params)
	if err != nil {
		return err
	}
	m.started = append(m.started, startedTask{id: id, kind: kind, params: raw})
	return nil
}

func (m *memSub) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func (m *memSub) SaveState(ctx context.Context, taskID string, state any) error {
	raw, err := sonic.Marshal(state)
	if err != nil {
		return err
	}
	m.states[taskID] = raw
	return nil
}

func (m *memSub) LoadState(ctx context.Context, taskID string, state any) (bool, error) {
	raw, ok := m.states[taskID]
	if !ok {
		return false, nil
	}
	return true, sonic.Unmarshal(raw, state)
}

type recNotifier struct {
	msgs []string
}

func (n *recNotifier) Send(ctx context.Context, chatID int64, msg string) {
	n.msgs = append(n.msgs, msg)
}

func (n *recNotifier) Sendf(ctx context.Context, chatID int64, format string, args ...any) {
	n.msgs = append(n.msgs, fmt.Sprintf(format, args...))
}

type stubMarket struct {
	atr    float64
	atrErr error
}

func (m *stubMarket) Watch(symbol, timeframe string) {}

func (m *stubMarket) LatestATR(ctx context.Context, symbol, timeframe string, length int) (float64, error) {
	return m.atr, m.atrErr
}

type memJournal struct {
	records []models.TradeRecord
}

func (j *memJournal) Append(rec models.TradeRecord) {
	j.records = append(j.records, rec)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.OrderBookDepth = 5
	cfg.FillPollSeconds = 5
	cfg.FillWaitSeconds = 30
	cfg.TakeProfitPendingMax = 10
	cfg.ManageMaxWeeks = 10
	cfg.TimeframeWaits = map[string]int{"1m": 30, "5m": 120}
	return cfg
}

type testEnv struct {
	svc      *Service
	gw       *fakeExchange
	sub      *memSub
	notifier *recNotifier
	market   *stubMarket
	journal  *memJournal
}

func newTestEnv(gw *fakeExchange) *testEnv {
	env := &testEnv{
		gw:       gw,
		sub:      newMemSub(),
		notifier: &recNotifier{},
		market:   &stubMarket{atr: 20},
		journal:  &memJournal{},
	}
	env.svc = New(testConfig(), env.sub,
		func(apiKey, apiSecret string) Exchange { return gw },
		env.market, env.journal, env.notifier)
	return env
}

func testBook() *models.OrderBook {
	return &models.OrderBook{
		Bids: []models.BookLevel{{Price: 1999, Qty: 1}, {Price: 1998, Qty: 1}, {Price: 1997, Qty: 1}, {Price: 1996, Qty: 1}, {Price: 1995, Qty: 1}},
		Asks: []models.BookLevel{{Price: 2001, Qty: 1}, {Price: 2002, Qty: 1}, {Price: 2003, Qty: 1}, {Price: 2004, Qty: 1}, {Price: 2005, Qty: 1}},
	}
}

func testParams() models.TradeParams {
	return models.TradeParams{
		APIKey:           "k",
		APISecret:        "s",
		User:             "alice",
		Symbol:           "ETHUSDT",
		Side:             models.SideBuy,
		Quantity:         1,
		QuantityDecimals: 3,
		StopPrice:        1950,
		ATRValue:         20,
		ATRLength:        14,
		Timeframe:        "5m",
		OrderType:        models.OrderMarket,
		Leverage:         10,
		TakeProfitATRMul: 5,
		WaitSeconds:      120,
		StrategyName:     "breakout",
		ChatID:           42,
	}
}
