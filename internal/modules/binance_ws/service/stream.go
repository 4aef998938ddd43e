package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"futures_bot/internal/models"
	"futures_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const maxCachedCandles = 512

// Streamer держит одно ws-подключение к фьючерсному стриму и кормит кеш
// закрытых свечей. Подписки добавляются на лету через Watch, цикл управления
// позицией читает ATR из кеша, не дёргая REST каждую итерацию.
type Streamer struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.RWMutex
	subs    map[string]struct{} // "ethusdt@kline_5m"
	candles map[string][]models.Candle
	conn    *websocket.Conn
}

func NewStreamer(url string) *Streamer {
	return &Streamer{
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		subs:    make(map[string]struct{}),
		candles: make(map[string][]models.Candle),
	}
}

func streamKey(symbol, timeframe string) string {
	return strings.ToLower(symbol) + "@kline_" + timeframe
}

// Watch добавляет подписку на свечи; уже открытому соединению шлётся SUBSCRIBE.
func (s *Streamer) Watch(symbol, timeframe string) {
	key := streamKey(symbol, timeframe)

	s.mu.Lock()
	if _, ok := s.subs[key]; ok {
		s.mu.Unlock()
		return
	}
	s.subs[key] = struct{}{}
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		s.subscribe(conn, []string{key})
	}
}

// Candles — копия закрытых свечей из кеша, старые -> новые.
func (s *Streamer) Candles(symbol, timeframe string) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached := s.candles[streamKey(symbol, timeframe)]
	out := make([]models.Candle, len(cached))
	copy(out, cached)
	return out
}

// Run крутит подключение с переподключением до отмены контекста.
func (s *Streamer) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.runConn(ctx)
		if ctx.Err() != nil {
			return
		}
		attempt++
		delay := time.Duration(1<<min(attempt, 5)) * time.Second
		logger.Error("binance ws: connection lost: %v, reconnect in %s", err, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Streamer) runConn(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	keys := make([]string, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	if len(keys) > 0 {
		s.subscribe(conn, keys)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(raw)
	}
}

func (s *Streamer) subscribe(conn *websocket.Conn, keys []string) {
	msg := map[string]any{
		"method": "SUBSCRIBE",
		"params": keys,
		"id":     time.Now().UnixNano(),
	}
	payload, _ := sonic.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Error("binance ws: subscribe: %v", err)
	}
}

func (s *Streamer) handleMessage(raw []byte) {
	var ev struct {
		EventType string `json:"e"`
		Symbol    string `json:"s"`
		Kline     struct {
			Interval string `json:"i"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Start    int64  `json:"t"`
			Closed   bool   `json:"x"`
		} `json:"k"`
	}
	if err := sonic.Unmarshal(raw, &ev); err != nil {
		return
	}
	// копим только закрытые свечи — ATR считается по завершённым барам
	if ev.EventType != "kline" || !ev.Kline.Closed {
		return
	}

	candle := models.Candle{
		OpenTime: ev.Kline.Start,
		Open:     parseFloat(ev.Kline.Open),
		High:     parseFloat(ev.Kline.High),
		Low:      parseFloat(ev.Kline.Low),
		Close:    parseFloat(ev.Kline.Close),
		Volume:   parseFloat(ev.Kline.Volume),
	}

	key := streamKey(ev.Symbol, ev.Kline.Interval)

	s.mu.Lock()
	defer s.mu.Unlock()
	cached := append(s.candles[key], candle)
	if len(cached) > maxCachedCandles {
		cached = cached[len(cached)-maxCachedCandles:]
	}
	s.candles[key] = cached
}
