// Package notify delivers finished signals to outbound channels: a
// Discord-style webhook (default, required) and an optional Telegram bot.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/errs"
)

const webhookTimeout = 10 * time.Second

const (
	colorLong  = 0x00FF00
	colorShort = 0xFF0000
)

// webhookPayload mirrors the Discord-style embed webhook body.
type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title     string  `json:"title"`
	Color     int     `json:"color"`
	Fields    []field `json:"fields,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// WebhookSink posts one embed payload per signal to a single configured
// webhook URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// Deliver implements domain.NotifySink.
func (w *WebhookSink) Deliver(ctx context.Context, signal domain.Signal) error {
	payload := webhookPayload{
		Embeds: []embed{buildEmbed(signal)},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errs.NewSinkError("webhook", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errs.NewSinkError("webhook", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errs.NewSinkError("webhook", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.NewSinkError("webhook", fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}

func buildEmbed(signal domain.Signal) embed {
	color := colorShort
	if signal.Bias == domain.BiasLong {
		color = colorLong
	}

	rsiTriplet := fmt.Sprintf("%.2f / %.2f / %.2f", signal.RSI, signal.RSI, signal.RSI)

	return embed{
		Title: fmt.Sprintf("🎯 DYNASTY FUNDING RATE ALERTS — %s", signal.Symbol),
		Color: color,
		Fields: []field{
			{Name: "Symbol", Value: signal.Symbol.String(), Inline: true},
			{Name: "Timeframe", Value: signal.Timeframe, Inline: true},
			{Name: "Bias", Value: fmt.Sprintf("%s %s", biasCircle(signal.Bias), signal.Bias), Inline: true},
			{Name: "Funding Rate", Value: fmt.Sprintf("%.4f%%", signal.FundingRate), Inline: true},
			{Name: "Funding Bias", Value: signal.FundingBiasLabel, Inline: true},
			{Name: "Momentum", Value: string(signal.MomentumLabel), Inline: true},
			{Name: "RSI (15m / 5m / 1m)", Value: rsiTriplet, Inline: false},
			{Name: "Movement", Value: fmt.Sprintf("up %.2f%% / down %.2f%%", signal.Movement.Up, signal.Movement.Down), Inline: false},
			{Name: "Score", Value: fmt.Sprintf("%.2f", signal.Score), Inline: true},
			{Name: "Price", Value: fmt.Sprintf("%.6f", signal.Price), Inline: true},
			{Name: "Links", Value: quickLinks(signal.Symbol), Inline: false},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func quickLinks(symbol domain.Symbol) string {
	return fmt.Sprintf(
		"[Chart](https://www.tradingview.com/symbols/%s.P/) | [Exchange](https://www.bybit.com/trade/usdt/%s)",
		symbol, symbol,
	)
}

func biasCircle(bias domain.Bias) string {
	if bias == domain.BiasLong {
		return "🟢"
	}
	return "🔴"
}
