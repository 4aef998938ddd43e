package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"futures_bot/internal/models"

	"github.com/bytedance/sonic"
)

func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	if depth <= 0 {
		depth = 5
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depth))

	data, err := c.doPublic(ctx, "/fapi/v1/depth", params)
	if err != nil {
		return nil, fmt.Errorf("OrderBook: %w", err)
	}

	var r struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("OrderBook decode: %w; body=%s", err, string(data))
	}

	book := &models.OrderBook{
		Bids: make([]models.BookLevel, 0, len(r.Bids)),
		Asks: make([]models.BookLevel, 0, len(r.Asks)),
	}
	for _, lvl := range r.Bids {
		if len(lvl) < 2 {
			continue
		}
		book.Bids = append(book.Bids, models.BookLevel{Price: parseFloat(lvl[0]), Qty: parseFloat(lvl[1])})
	}
	for _, lvl := range r.Asks {
		if len(lvl) < 2 {
			continue
		}
		book.Asks = append(book.Asks, models.BookLevel{Price: parseFloat(lvl[0]), Qty: parseFloat(lvl[1])})
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, fmt.Errorf("OrderBook: empty book RAW=%s", string(data))
	}
	return book, nil
}

// RecentCandles — закрытые свечи по символу, старые -> новые.
func (c *Client) RecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	data, err := c.doPublic(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, fmt.Errorf("RecentCandles: %w", err)
	}

	// Формат биржи: [openTime, open, high, low, close, volume, ...]
	var rows [][]any
	if err := sonic.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("RecentCandles decode: %w", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openTime, _ := row[0].(float64)
		c := models.Candle{OpenTime: int64(openTime)}
		if s, ok := row[1].(string); ok {
			c.Open = parseFloat(s)
		}
		if s, ok := row[2].(string); ok {
			c.High = parseFloat(s)
		}
		if s, ok := row[3].(string); ok {
			c.Low = parseFloat(s)
		}
		if s, ok := row[4].(string); ok {
			c.Close = parseFloat(s)
		}
		if s, ok := row[5].(string); ok {
			c.Volume = parseFloat(s)
		}
		candles = append(candles, c)
	}
	return candles, nil
}
