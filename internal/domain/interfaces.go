package domain

import "context"

// ExchangeClient is the stateless request/response port onto the exchange.
type ExchangeClient interface {
	GetInstruments(ctx context.Context) ([]Instrument, error)
	GetTickers(ctx context.Context) ([]Ticker, error)
	GetTicker(ctx context.Context, symbol Symbol) (Ticker, error)
	GetKlines(ctx context.Context, symbol Symbol, interval string, limit int) ([]float64, error)
}

// Instrument is the listing metadata the Universe Loader filters against.
type Instrument struct {
	Symbol       Symbol
	Status       string
	QuoteCoin    string
	ContractType string
}

// StreamTransport is the long-lived streaming port onto the exchange.
type StreamTransport interface {
	Subscribe(symbol Symbol) error
	FundingStream() <-chan Funding
	TickerStream() <-chan Ticker
	Close() error
}

// NotifySink delivers a finished Signal to an outbound channel.
type NotifySink interface {
	Deliver(ctx context.Context, signal Signal) error
}

// SignalStore is the optional fire-and-forget persistence port.
type SignalStore interface {
	SaveSignal(ctx context.Context, signal Signal) error
	SaveFundingSnapshot(ctx context.Context, symbol Symbol, funding, price, volume24h, rsi float64) error
}
