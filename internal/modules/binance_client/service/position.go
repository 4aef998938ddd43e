package service

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"futures_bot/internal/models"

	"github.com/bytedance/sonic"
)

// OpenPosition возвращает открытую позицию по символу или nil, если её нет.
// Нулевой размер приравнивается к отсутствию: биржа какое-то время отдаёт
// пустую строку позиции после закрытия.
func (c *Client) OpenPosition(ctx context.Context, symbol string) (*models.Position, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := c.doSigned(ctx, http.MethodGet, "/fapi/v3/positionRisk", params)
	if err != nil {
		return nil, fmt.Errorf("OpenPosition: %w", err)
	}

	var rows []struct {
		Symbol           string `json:"symbol"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
		PositionAmt      string `json:"positionAmt"`
	}
	if err := sonic.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("OpenPosition decode: %w; body=%s", err, string(data))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	size := parseFloat(row.PositionAmt)
	if math.Abs(size) == 0 {
		return nil, nil
	}

	return &models.Position{
		Symbol:        row.Symbol,
		EntryPrice:    parseFloat(row.EntryPrice),
		MarkPrice:     parseFloat(row.MarkPrice),
		UnrealizedPnL: parseFloat(row.UnRealizedProfit),
		Size:          size,
	}, nil
}
