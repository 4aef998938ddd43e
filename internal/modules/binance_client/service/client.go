package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"futures_bot/internal/models"

	"github.com/bytedance/sonic"
)

// Client — REST-клиент USDS-M фьючерсов под один аккаунт.
// Ошибки API приводятся к models.ExchangeError по кодам биржи.
type Client struct {
	baseURL string
	apiKey  string
	secret  string
	http    *http.Client
}

type Factory struct {
	baseURL string
	http    *http.Client
}

func NewFactory(baseURL string) *Factory {
	return &Factory{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Client — клиент под ключи конкретного аккаунта; сам Factory stateless.
func (f *Factory) Client(apiKey, apiSecret string) *Client {
	return &Client{
		baseURL: f.baseURL,
		apiKey:  apiKey,
		secret:  apiSecret,
		http:    f.http,
	}
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// doSigned — подписанный запрос; параметры уходят в query string,
// timestamp и подпись добавляются здесь.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s new request: %w", method, path, err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	return c.execute(req, method, path)
}

// doPublic — запрос без подписи (стакан, свечи).
func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s new request: %w", path, err)
	}
	return c.execute(req, http.MethodGet, path)
}

func (c *Client) execute(req *http.Request, method, path string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s do: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 == 2 {
		return data, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &models.ExchangeError{Code: models.CodeRateLimited, APICode: -1003, Msg: string(data)}
	}

	var apiErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := sonic.Unmarshal(data, &apiErr); err != nil || apiErr.Code == 0 {
		return nil, &models.ExchangeError{
			Code: models.CodeOther,
			Msg:  fmt.Sprintf("%s %s http %d: %s", method, path, resp.StatusCode, string(data)),
		}
	}
	return nil, mapAPIError(apiErr.Code, apiErr.Msg)
}

// mapAPIError — классификация кодов биржи под политику ретраев:
// -1003/-1015 — лимиты запросов, -1021 — рассинхрон часов,
// -1111 — превышена точность количества, -2011 — cancel по уже сведённому ордеру.
func mapAPIError(code int, msg string) error {
	e := &models.ExchangeError{APICode: code, Msg: msg}
	switch code {
	case -1003, -1015:
		e.Code = models.CodeRateLimited
	case -1021:
		e.Code = models.CodeClockDrift
	case -1111:
		e.Code = models.CodePrecisionRejected
	case -2011:
		e.Code = models.CodeAlreadyFilled
	default:
		e.Code = models.CodeOther
	}
	return e
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
