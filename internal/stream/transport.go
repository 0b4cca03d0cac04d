// Package stream maintains a resilient streaming connection to the
// exchange, delivering ordered per-symbol funding and ticker updates.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/exchange"
)

const (
	MainnetLinearURL = "wss://stream.bybit.com/v5/public/linear"
	TestnetLinearURL = "wss://stream-testnet.bybit.com/v5/public/linear"

	reconnectDelay = 5 * time.Second
	pingInterval   = 20 * time.Second
)

// state is the transport's connection lifecycle.
type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
	stateClosing
)

// Transport implements domain.StreamTransport.
type Transport struct {
	url    string
	logger *slog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state state

	subsMu     sync.RWMutex
	activeSubs map[domain.Symbol]struct{}

	fundingOut chan domain.Funding
	tickerOut  chan domain.Ticker
	stopOnce   sync.Once
	stopChan   chan struct{}
}

func NewTransport(testnet bool) *Transport {
	url := MainnetLinearURL
	if testnet {
		url = TestnetLinearURL
	}
	t := &Transport{
		url:        url,
		logger:     slog.Default().With("component", "stream_transport"),
		activeSubs: make(map[domain.Symbol]struct{}),
		fundingOut: make(chan domain.Funding, 256),
		tickerOut:  make(chan domain.Ticker, 256),
		stopChan:   make(chan struct{}),
	}
	go t.maintainConnection()
	return t
}

// Subscribe idempotently records intent for a symbol and, if connected,
// issues subscribe frames for both funding.<symbol> and tickers.<symbol>.
func (t *Transport) Subscribe(symbol domain.Symbol) error {
	t.subsMu.Lock()
	_, exists := t.activeSubs[symbol]
	if !exists {
		t.activeSubs[symbol] = struct{}{}
	}
	t.subsMu.Unlock()

	if exists {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.state != stateConnected {
		return nil
	}
	return t.sendSubscribe([]domain.Symbol{symbol})
}

func (t *Transport) FundingStream() <-chan domain.Funding { return t.fundingOut }
func (t *Transport) TickerStream() <-chan domain.Ticker   { return t.tickerOut }

func (t *Transport) Close() error {
	t.stopOnce.Do(func() { close(t.stopChan) })
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = stateClosing
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *Transport) maintainConnection() {
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		t.setState(stateConnecting)
		if err := t.connectAndListen(); err != nil {
			t.logger.Error("stream connection lost", "err", err)
		}
		t.setState(stateDisconnected)

		select {
		case <-t.stopChan:
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (t *Transport) connectAndListen() error {
	t.logger.Info("connecting to stream", "url", t.url)

	conn, _, err := websocket.DefaultDialer.Dial(t.url, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.setState(stateConnected)

	defer func() {
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
		}
		t.mu.Unlock()
	}()

	t.subsMu.RLock()
	subs := make([]domain.Symbol, 0, len(t.activeSubs))
	for s := range t.activeSubs {
		subs = append(subs, s)
	}
	t.subsMu.RUnlock()

	if len(subs) > 0 {
		if err := t.sendSubscribe(subs); err != nil {
			return err
		}
	}

	heartbeatStop := make(chan struct{})
	defer close(heartbeatStop)
	go t.heartbeat(heartbeatStop)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		t.handleMessage(message)
	}
}

func (t *Transport) handleMessage(message []byte) {
	var frame struct {
		Op    string          `json:"op"`
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		t.logger.Warn("discarding malformed frame", "err", err)
		return
	}
	if frame.Op != "" {
		return
	}
	if frame.Topic == "" {
		return
	}

	switch {
	case strings.HasPrefix(frame.Topic, "funding."):
		t.handleFundingFrame(frame.Topic, frame.Data)
	case strings.HasPrefix(frame.Topic, "tickers."):
		t.handleTickerFrame(frame.Topic, frame.Data)
	}
}

func (t *Transport) handleFundingFrame(topic string, data json.RawMessage) {
	symbol := domain.NormalizeSymbol(strings.TrimPrefix(topic, "funding."))

	var payload struct {
		FundingRate     string `json:"fundingRate"`
		NextFundingTime string `json:"nextFundingTime"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Warn("discarding malformed funding frame", "err", err)
		return
	}

	rate, err := exchange.FundingRatePercent(payload.FundingRate)
	if err != nil {
		t.logger.Warn("discarding funding frame with bad rate", "err", err)
		return
	}

	nextFunding := time.Time{}
	if ms, err := decimal.NewFromString(payload.NextFundingTime); err == nil {
		nextFunding = time.UnixMilli(ms.IntPart())
	}

	funding := domain.Funding{
		Symbol:          symbol,
		Rate:            rate,
		NextFundingTime: nextFunding,
		Timestamp:       time.Now(),
	}

	select {
	case t.fundingOut <- funding:
	default:
		t.logger.Warn("funding channel full, dropping update", "symbol", symbol)
	}
}

func (t *Transport) handleTickerFrame(topic string, data json.RawMessage) {
	symbol := domain.NormalizeSymbol(strings.TrimPrefix(topic, "tickers."))

	var payload struct {
		LastPrice   decimal.Decimal `json:"lastPrice"`
		Turnover24h decimal.Decimal `json:"turnover24h"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Warn("discarding malformed ticker frame", "err", err)
		return
	}
	if payload.LastPrice.IsZero() {
		return
	}

	ticker := domain.Ticker{
		Symbol:      symbol,
		LastPrice:   payload.LastPrice,
		Turnover24h: payload.Turnover24h,
		Timestamp:   time.Now(),
	}

	select {
	case t.tickerOut <- ticker:
	default:
		t.logger.Warn("ticker channel full, dropping update", "symbol", symbol)
	}
}

func (t *Transport) sendSubscribe(symbols []domain.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	args := make([]string, 0, len(symbols)*2)
	for _, s := range symbols {
		args = append(args, "funding."+s.String(), "tickers."+s.String())
	}

	t.logger.Info("subscribing", "topics", args)
	return t.conn.WriteJSON(map[string]any{"op": "subscribe", "args": args})
}

func (t *Transport) heartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			conn := t.conn
			t.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
				t.logger.Error("heartbeat ping failed", "err", err)
			}
		}
	}
}

func (t *Transport) setState(s state) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}
