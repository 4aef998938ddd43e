package lifecycle

import (
	"context"
	"fmt"

	"futures_bot/internal/helper"
	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
)

// enter размещает входной ордер. Для лимитного входа цена берётся с дальнего
// края своей стороны стакана: встаём в очередь, а не пересекаем спред.
func (s *Service) enter(ctx context.Context, gw Exchange, p models.TradeParams) (int64, error) {
	req := models.OrderRequest{
		Symbol:   p.Symbol,
		Side:     p.Side,
		Type:     p.OrderType,
		Quantity: p.Quantity,
	}

	if p.OrderType == models.OrderLimit {
		book, err := s.orderBook(ctx, gw, p.Symbol, fastPolicy)
		if err != nil {
			return 0, err
		}
		req.Price = entryPrice(book, p.Side)
		req.TimeInForce = "GTC"
	}

	return s.submitWithPrecision(ctx, gw, req, p.QuantityDecimals, fastPolicy)
}

// submitWithPrecision — размещение с локальной коррекцией точности:
// на PRECISION_REJECTED срезаем один знак количества и повторяем.
// Это детерминированная починка запроса, а не ретрай, поэтому вне Policy.
func (s *Service) submitWithPrecision(ctx context.Context, gw Exchange, req models.OrderRequest, decimals int, pol Policy) (int64, error) {
	for {
		var orderID int64
		err := pol.Do(ctx, "submit_order", func() error {
			var e error
			orderID, e = gw.SubmitOrder(ctx, req)
			return e
		})
		if err == nil {
			return orderID, nil
		}
		if models.Code(err) != models.CodePrecisionRejected {
			return 0, err
		}

		decimals--
		if decimals < 0 {
			return 0, fmt.Errorf("%s: quantity precision exhausted: %w", req.Symbol, err)
		}
		req.Quantity = helper.RoundTo(req.Quantity, decimals)
		logger.Info("%s: precision rejected, rounding quantity to %d decimals", req.Symbol, decimals)
	}
}

func (s *Service) orderBook(ctx context.Context, gw Exchange, symbol string, pol Policy) (*models.OrderBook, error) {
	var book *models.OrderBook
	err := pol.Do(ctx, "order_book", func() error {
		var e error
		book, e = gw.OrderBook(ctx, symbol, s.cfg.OrderBookDepth)
		return e
	})
	return book, err
}

// entryPrice — последний уровень своей стороны книги.
func entryPrice(book *models.OrderBook, side models.Side) float64 {
	if side == models.SideBuy {
		return book.Bids[len(book.Bids)-1].Price
	}
	return book.Asks[len(book.Asks)-1].Price
}

// exitPrice — третий уровень противоположной стороны книги: лимитка
// пересекает спред и сводится быстро, но без рыночного проскальзывания.
func exitPrice(book *models.OrderBook, exitSide models.Side) float64 {
	if exitSide == models.SideSell {
		return bookLevel(book.Bids, 2)
	}
	return bookLevel(book.Asks, 2)
}

func bookLevel(levels []models.BookLevel, idx int) float64 {
	if idx >= len(levels) {
		idx = len(levels) - 1
	}
	return levels[idx].Price
}
