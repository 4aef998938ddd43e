package lifecycle

import (
	"context"
	"testing"

	"futures_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalParams(t *testing.T, p models.TradeParams) []byte {
	t.Helper()
	raw, err := sonic.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestHandleTradeMarketEntryFullFlow(t *testing.T) {
	var leverageSet int
	var stopTrigger float64
	gw := &fakeExchange{
		setLeverage: func(ctx context.Context, symbol string, leverage int) (int, error) {
			leverageSet = leverage
			return leverage, nil
		},
		submitOrder: func(ctx context.Context, req models.OrderRequest) (int64, error) {
			return 100, nil
		},
		submitStop: func(ctx context.Context, symbol string, side models.Side, trigger, qty float64) (int64, error) {
			stopTrigger = trigger
			return 200, nil
		},
	}
	env := newTestEnv(gw)

	p := testParams()
	taskID := p.Identity().String()
	require.NoError(t, env.svc.HandleTrade(context.Background(), taskID, marshalParams(t, p)))

	assert.Equal(t, 10, leverageSet)
	assert.InDelta(t, 1950, stopTrigger, 1e-9)

	// отсоединённый цикл управления запущен под своим id
	require.Len(t, env.sub.started, 1)
	assert.Equal(t, "manage-alice-ETHUSDT", env.sub.started[0].id)
	assert.Equal(t, KindManage, env.sub.started[0].kind)

	var mp models.ManageParams
	require.NoError(t, sonic.Unmarshal(env.sub.started[0].params, &mp))
	assert.Equal(t, int64(100), mp.OrderID)
	assert.Equal(t, int64(200), mp.AlgoID)
	// маркет-вход: пауза цикла управления вдвое короче
	assert.Equal(t, 60, mp.WaitSeconds)

	// финальный чекпоинт — DONE
	var st models.LifecycleState
	ok, err := env.sub.LoadState(context.Background(), taskID, &st)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.PhaseDone, st.Phase)

	require.Len(t, env.notifier.msgs, 1)
	assert.Contains(t, env.notifier.msgs[0], "New position started on ETHUSDT")
}

func TestHandleTradeSkipsLeverageWhenZero(t *testing.T) {
	gw := &fakeExchange{
		submitOrder: func(ctx context.Context, req models.OrderRequest) (int64, error) { return 1, nil },
		submitStop: func(ctx context.Context, symbol string, side models.Side, trigger, qty float64) (int64, error) {
			return 2, nil
		},
	}
	env := newTestEnv(gw)

	p := testParams()
	p.Leverage = 0
	// setLeverage не задан: вызов уронил бы тест паникой
	require.NoError(t, env.svc.HandleTrade(context.Background(), p.Identity().String(), marshalParams(t, p)))
}

func TestHandleTradeLimitEntryWaitsForFill(t *testing.T) {
	polls := 0
	gw := &fakeExchange{
		setLeverage: func(ctx context.Context, symbol string, leverage int) (int, error) { return leverage, nil },
		orderBook: func(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
			return testBook(), nil
		},
		submitOrder: func(ctx context.Context, req models.OrderRequest) (int64, error) { return 100, nil },
		queryOrder: func(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
			polls++
			if polls < 3 {
				return models.OrderStatusNew, nil
			}
			return models.OrderStatusFilled, nil
		},
		submitStop: func(ctx context.Context, symbol string, side models.Side, trigger, qty float64) (int64, error) {
			return 200, nil
		},
	}
	env := newTestEnv(gw)

	p := testParams()
	p.OrderType = models.OrderLimit
	require.NoError(t, env.svc.HandleTrade(context.Background(), p.Identity().String(), marshalParams(t, p)))

	assert.Equal(t, 3, polls)
	require.Len(t, env.sub.started, 1)

	var mp models.ManageParams
	require.NoError(t, sonic.Unmarshal(env.sub.started[0].params, &mp))
	// лимитный вход: полная пауза цикла управления
	assert.Equal(t, 120, mp.WaitSeconds)
}

func TestHandleTradeLimitEntryCancelsAfterWaitBudget(t *testing.T) {
	cancelled := false
	gw := &fakeExchange{
		setLeverage: func(ctx context.Context, symbol string, leverage int) (int, error) { return leverage, nil },
		orderBook: func(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
			return testBook(), nil
		},
		submitOrder: func(ctx context.Context, req models.OrderRequest) (int64, error) { return 100, nil },
		queryOrder: func(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
			return models.OrderStatusNew, nil
		},
		cancelOrder: func(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
			cancelled = true
			return models.OrderStatusCanceled, nil
		},
	}
	env := newTestEnv(gw)

	p := testParams()
	p.OrderType = models.OrderLimit
	taskID := p.Identity().String()
	require.NoError(t, env.svc.HandleTrade(context.Background(), taskID, marshalParams(t, p)))

	assert.True(t, cancelled)
	assert.Empty(t, env.sub.started)
	assert.Empty(t, env.notifier.msgs)

	var st models.LifecycleState
	ok, err := env.sub.LoadState(context.Background(), taskID, &st)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.PhaseDone, st.Phase)
	assert.Contains(t, st.Outcome, "not filled")
}

func TestHandleTradeCancelRaceMeansFilled(t *testing.T) {
	gw := &fakeExchange{
		setLeverage: func(ctx context.Context, symbol string, leverage int) (int, error) { return leverage, nil },
		orderBook: func(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
			return testBook(), nil
		},
		submitOrder: func(ctx context.Context, req models.OrderRequest) (int64, error) { return 100, nil },
		queryOrder: func(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
			return models.OrderStatusNew, nil
		},
		cancelOrder: func(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
			return "", &models.ExchangeError{Code: models.CodeAlreadyFilled, APICode: -2011, Msg: "Unknown order sent"}
		},
		submitStop: func(ctx context.Context, symbol string, side models.Side, trigger, qty float64) (int64, error) {
			return 200, nil
		},
	}
	env := newTestEnv(gw)

	p := testParams()
	p.OrderType = models.OrderLimit
	require.NoError(t, env.svc.HandleTrade(context.Background(), p.Identity().String(), marshalParams(t, p)))

	// гонка cancel-после-fill: жизненный цикл продолжился до защиты и управления
	require.Len(t, env.sub.started, 1)
	assert.Equal(t, KindManage, env.sub.started[0].kind)
	require.Len(t, env.notifier.msgs, 1)
	assert.Contains(t, env.notifier.msgs[0], "New position started")
}

func TestHandleTradeResumesFromCheckpoint(t *testing.T) {
	gw := &fakeExchange{
		submitStop: func(ctx context.Context, symbol string, side models.Side, trigger, qty float64) (int64, error) {
			return 200, nil
		},
	}
	env := newTestEnv(gw)

	p := testParams()
	taskID := p.Identity().String()
	// процесс умер после входа: чекпоинт на фазе STOP
	require.NoError(t, env.sub.SaveState(context.Background(), taskID,
		models.LifecycleState{Phase: models.PhaseStop, OrderID: 100}))

	require.NoError(t, env.svc.HandleTrade(context.Background(), taskID, marshalParams(t, p)))

	// вход не повторялся (submitOrder не задан), управление запущено
	require.Len(t, env.sub.started, 1)
	var mp models.ManageParams
	require.NoError(t, sonic.Unmarshal(env.sub.started[0].params, &mp))
	assert.Equal(t, int64(100), mp.OrderID)
	assert.Equal(t, int64(200), mp.AlgoID)
}

func TestHandleTradeDuplicateManageIsFine(t *testing.T) {
	gw := &fakeExchange{
		setLeverage: func(ctx context.Context, symbol string, leverage int) (int, error) { return leverage, nil },
		submitOrder: func(ctx context.Context, req models.OrderRequest) (int64, error) { return 100, nil },
		submitStop: func(ctx context.Context, symbol string, side models.Side, trigger, qty float64) (int64, error) {
			return 200, nil
		},
	}
	env := newTestEnv(gw)
	env.sub.dup = true

	p := testParams()
	require.NoError(t, env.svc.HandleTrade(context.Background(), p.Identity().String(), marshalParams(t, p)))
}

func TestStartTradeValidatesParams(t *testing.T) {
	env := newTestEnv(&fakeExchange{})

	p := testParams()
	p.Quantity = 0
	require.Error(t, env.svc.StartTrade(context.Background(), p))
	assert.Empty(t, env.sub.started)

	p = testParams()
	require.NoError(t, env.svc.StartTrade(context.Background(), p))
	require.Len(t, env.sub.started, 1)
	assert.Equal(t, "breakout-alice-ETHUSDT", env.sub.started[0].id)
	assert.Equal(t, KindTrade, env.sub.started[0].kind)
}
