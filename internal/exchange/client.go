// Package exchange is the stateless request/response client onto the
// exchange's linear-perpetual REST surface. It is the only package aware of
// the wire schema: it normalizes numeric strings to decimals and scales
// funding rates from fraction to percent on ingress.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/errs"
)

const (
	MainnetBaseURL = "https://api.bybit.com"
	TestnetBaseURL = "https://api-testnet.bybit.com"
	requestTimeout = 10 * time.Second
)

// Client implements domain.ExchangeClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(testnet bool) *Client {
	url := MainnetBaseURL
	if testnet {
		url = TestnetBaseURL
	}
	return &Client{
		baseURL:    url,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// GetInstruments lists tradable linear USDT perpetuals.
func (c *Client) GetInstruments(ctx context.Context) ([]domain.Instrument, error) {
	params := map[string]string{"category": "linear"}

	var resp baseResponse[instrumentsResult]
	if err := c.sendPublic(ctx, "/v5/market/instruments-info", params, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Instrument, 0, len(resp.Result.List))
	for _, i := range resp.Result.List {
		out = append(out, domain.Instrument{
			Symbol:       domain.NormalizeSymbol(i.Symbol),
			Status:       i.Status,
			QuoteCoin:    i.QuoteCoin,
			ContractType: i.ContractType,
		})
	}
	return out, nil
}

// GetTickers returns a bulk snapshot of every linear perpetual ticker.
func (c *Client) GetTickers(ctx context.Context) ([]domain.Ticker, error) {
	params := map[string]string{"category": "linear"}

	var resp baseResponse[tickersResult]
	if err := c.sendPublic(ctx, "/v5/market/tickers", params, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Ticker, 0, len(resp.Result.List))
	for _, t := range resp.Result.List {
		out = append(out, toTicker(t))
	}
	return out, nil
}

// GetTicker returns a single symbol's ticker snapshot.
func (c *Client) GetTicker(ctx context.Context, symbol domain.Symbol) (domain.Ticker, error) {
	params := map[string]string{"category": "linear", "symbol": symbol.String()}

	var resp baseResponse[tickersResult]
	if err := c.sendPublic(ctx, "/v5/market/tickers", params, &resp); err != nil {
		return domain.Ticker{}, err
	}
	if len(resp.Result.List) == 0 {
		return domain.Ticker{}, fmt.Errorf("ticker not found for %s", symbol)
	}
	return toTicker(resp.Result.List[0]), nil
}

// GetKlines returns close prices for symbol/interval, oldest first, capped
// at limit entries. Bybit returns newest-first; the result is reversed
// before return.
func (c *Client) GetKlines(ctx context.Context, symbol domain.Symbol, interval string, limit int) ([]float64, error) {
	bybitInterval := interval
	if interval == "1m" {
		bybitInterval = "1"
	} else if interval == "5m" {
		bybitInterval = "5"
	}

	params := map[string]string{
		"category": "linear",
		"symbol":   symbol.String(),
		"interval": bybitInterval,
		"limit":    strconv.Itoa(limit),
	}

	var resp baseResponse[klineResult]
	if err := c.sendPublic(ctx, "/v5/market/kline", params, &resp); err != nil {
		return nil, err
	}

	closes := make([]float64, 0, len(resp.Result.List))
	for _, row := range resp.Result.List {
		if len(row) < 5 {
			continue
		}
		v, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			continue
		}
		closes = append(closes, v)
	}

	// Bybit returns newest-first; reverse to oldest-first.
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	return closes, nil
}

func toTicker(t tickerDTO) domain.Ticker {
	return domain.Ticker{
		Symbol:             domain.NormalizeSymbol(t.Symbol),
		LastPrice:          t.LastPrice,
		Turnover24h:        t.Turnover24h,
		OpenInterestValue:  t.OpenInterestValue,
		OpenInterestAmount: t.OpenInterest,
		Timestamp:          time.Now(),
		FundingRateRaw:     t.FundingRate,
	}
}

// FundingRatePercent scales a wire fractional funding rate ("0.0001") to
// percent (0.01), matching spec.md's "multiplied by 100 on ingress" rule.
func FundingRatePercent(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty funding rate")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errs.NewParseError("funding_rate", err)
	}
	return d.Mul(decimal.NewFromInt(100)), nil
}

func (c *Client) sendPublic(ctx context.Context, endpoint string, params map[string]string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}

	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.NewTransportError(endpoint, err)
	}
	defer resp.Body.Close()

	return c.decodeResponse(endpoint, resp.Body, result)
}

func (c *Client) decodeResponse(endpoint string, body io.Reader, result interface{}) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return errs.NewTransportError(endpoint, err)
	}

	var base baseResponse[json.RawMessage]
	if err := json.Unmarshal(raw, &base); err != nil {
		return errs.NewParseError(endpoint, err)
	}
	if base.RetCode != 0 {
		return errs.NewExchangeError(base.RetCode, base.RetMsg)
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return errs.NewParseError(endpoint, err)
	}
	return nil
}
