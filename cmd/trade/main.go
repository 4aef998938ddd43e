package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"futures_bot/internal/lifecycle"
	"futures_bot/internal/marketdata"
	"futures_bot/internal/models"
	binance "futures_bot/internal/modules/binance_client/service"
	"futures_bot/internal/modules/config"
	"futures_bot/internal/sched"
	"futures_bot/internal/tradelog"
	"futures_bot/pkg/db"
	"futures_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Диспатчер жизненного цикла: пишет задачу в WAL планировщика, исполняет её
// уже воркер. Воркеру рестарт не нужен, цикл poll подберёт задачу сам.
//
//	trade -user alice -symbol ETHUSDT -side BUY -qty 0.5 -timeframe 5m
//	trade status -user alice -symbol ETHUSDT
func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.SetServiceName("futures-bot-trade")

	if len(os.Args) > 1 && os.Args[1] == "status" {
		runStatus(os.Args[2:])
		return
	}
	runDispatch(os.Args[1:])
}

func runDispatch(args []string) {
	fs := flag.NewFlagSet("trade", flag.ExitOnError)

	apiKey := fs.String("key", os.Getenv("BINANCE_API_KEY"), "api key (default $BINANCE_API_KEY)")
	apiSecret := fs.String("secret", os.Getenv("BINANCE_API_SECRET"), "api secret (default $BINANCE_API_SECRET)")
	user := fs.String("user", "", "user name")
	symbol := fs.String("symbol", "", "futures symbol, e.g. ETHUSDT")
	side := fs.String("side", "", "BUY | SELL")
	qty := fs.Float64("qty", 0, "order quantity")
	qtyDecimals := fs.Int("qty-decimals", 3, "quantity precision")
	stop := fs.Float64("stop", 0, "stop price (0 = derive from ATR)")
	stopMul := fs.Float64("stop-mul", 3, "ATR multiplier for derived stop")
	atr := fs.Float64("atr", 0, "ATR value (0 = compute from recent candles)")
	atrLength := fs.Int("atr-length", 14, "ATR length")
	timeframe := fs.String("timeframe", "5m", "kline timeframe")
	orderType := fs.String("order-type", "", "LIMIT | MARKET (default by timeframe)")
	leverage := fs.Int("leverage", 0, "leverage, 0 = leave as is")
	tpMul := fs.Float64("tp-mul", 5, "ATR multiplier for take profit and trailing")
	waitSec := fs.Int("wait", 0, "manage loop interval seconds (0 = by timeframe)")
	strategy := fs.String("strategy", "manual", "strategy name, part of the dedup key")
	chatID := fs.Int64("chat-id", 0, "telegram chat for notifications")
	_ = fs.Parse(args)

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatal("config: %v", err)
	}

	p := models.TradeParams{
		APIKey:           *apiKey,
		APISecret:        *apiSecret,
		User:             *user,
		Symbol:           strings.ToUpper(*symbol),
		Side:             models.Side(strings.ToUpper(*side)),
		Quantity:         *qty,
		QuantityDecimals: *qtyDecimals,
		StopPrice:        *stop,
		ATRValue:         *atr,
		ATRLength:        *atrLength,
		Timeframe:        *timeframe,
		OrderType:        resolveOrderType(*orderType, *timeframe),
		Leverage:         *leverage,
		TakeProfitATRMul: *tpMul,
		WaitSeconds:      *waitSec,
		StrategyName:     *strategy,
		ChatID:           *chatID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := binance.NewFactory(cfg.Binance.BaseURL).Client(p.APIKey, p.APISecret)
	if err := fillDerived(ctx, client, &p, *stopMul); err != nil {
		logger.Fatal("derive trade params: %v", err)
	}
	if err := p.Validate(); err != nil {
		logger.Fatal("%v", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open task store: %v", err)
	}

	raw, err := sonic.Marshal(p)
	if err != nil {
		logger.Fatal("marshal trade params: %v", err)
	}

	taskID := p.Identity().String()
	err = store.InsertActive(ctx, taskID, lifecycle.KindTrade, raw)
	if errors.Is(err, sched.ErrDuplicate) {
		fmt.Printf("trade %s is already running\n", taskID)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("dispatch: %v", err)
	}
	fmt.Printf("trade %s dispatched: %s %s qty=%v stop=%v atr=%v\n",
		taskID, p.Side, p.Symbol, p.Quantity, p.StopPrice, p.ATRValue)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	user := fs.String("user", "", "user name")
	symbol := fs.String("symbol", "", "futures symbol (empty = recent records for user)")
	limit := fs.Int("n", 10, "number of records without -symbol")
	_ = fs.Parse(args)

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatal("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := openTxManager(ctx, cfg)
	if err != nil {
		logger.Fatal("connect: %v", err)
	}

	store := tradelog.NewStore(m)

	if *symbol == "" {
		recs, err := store.Recent(ctx, *user, *limit)
		if err != nil {
			logger.Fatal("read trade log: %v", err)
		}
		if len(recs) == 0 {
			fmt.Println("no trade log records")
			return
		}
		for _, rec := range recs {
			fmt.Printf("%s  %-10s %-5s price=%v trailing=%v profit=%v\n",
				rec.Timestamp.Format(time.RFC3339), rec.Symbol, rec.Position,
				rec.CurrentPrice, rec.TrailingStop, rec.Profit)
		}
		return
	}

	rec, err := store.Latest(ctx, *user, strings.ToUpper(*symbol))
	if err != nil {
		logger.Fatal("read trade log: %v", err)
	}
	if rec == nil {
		fmt.Println("no trade log records")
		return
	}
	fmt.Printf("%s %s x%d @ %v\n", rec.Position, rec.Symbol, rec.Leverage, rec.EntryPrice)
	fmt.Printf("price=%v size=%v profit=%v\n", rec.CurrentPrice, rec.PositionSize, rec.Profit)
	fmt.Printf("trailing=%v take_profit=%v at %s\n", rec.TrailingStop, rec.TakeProfit, rec.Timestamp.Format(time.RFC3339))
}

// resolveOrderType: на минутках вход лимиткой дешевле по комиссии, на
// старших таймфреймах скорость входа важнее цены.
func resolveOrderType(explicit, timeframe string) models.OrderType {
	if explicit != "" {
		return models.OrderType(strings.ToUpper(explicit))
	}
	if timeframe == "1m" {
		return models.OrderLimit
	}
	return models.OrderMarket
}

// fillDerived достраивает ATR и стоп, если их не передали явно.
func fillDerived(ctx context.Context, client *binance.Client, p *models.TradeParams, stopMul float64) error {
	if p.ATRValue <= 0 {
		candles, err := client.RecentCandles(ctx, p.Symbol, p.Timeframe, p.ATRLength*3+2)
		if err != nil {
			return err
		}
		atr, err := marketdata.LatestATR(candles, p.ATRLength)
		if err != nil {
			return err
		}
		p.ATRValue = atr
	}

	if p.StopPrice <= 0 {
		book, err := client.OrderBook(ctx, p.Symbol, 5)
		if err != nil {
			return err
		}
		price := (book.Bids[0].Price + book.Asks[0].Price) / 2
		p.StopPrice = price - p.Side.Dir()*stopMul*p.ATRValue
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*sched.PgStore, error) {
	m, err := openTxManager(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sched.NewPgStore(m), nil
}

func openTxManager(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}
	return db.NewPgTxManager(pool), nil
}
