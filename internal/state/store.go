// Package state is the single source of truth for per-symbol live market
// data. It exclusively owns the ticker cache, funding cache, and the two
// bounded history series; every other component reads through its
// accessors.
package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
)

const (
	initBatchSize    = 20
	initBatchSpacing = 300 * time.Millisecond
	seedKlineLimit   = domain.PriceSeriesCapacity
)

// symbolState is mutated under its own lock so concurrent updates to
// distinct symbols never contend.
type symbolState struct {
	mu       sync.RWMutex
	ticker   *domain.Ticker
	funding  *domain.Funding
	prices   domain.PriceSeries
	fundings domain.FundingHistory
}

// Store is the Market State Store.
type Store struct {
	exchange domain.ExchangeClient
	logger   *slog.Logger

	mu      sync.RWMutex
	symbols map[domain.Symbol]*symbolState
}

func NewStore(exchange domain.ExchangeClient) *Store {
	return &Store{
		exchange: exchange,
		logger:   slog.Default().With("component", "market_state"),
		symbols:  make(map[domain.Symbol]*symbolState),
	}
}

// InitUniverse seeds every symbol's PriceSeries from a 100-point 1-minute
// candle fetch, batched 20 at a time with 300ms inter-batch spacing to
// respect exchange request-rate limits.
func (s *Store) InitUniverse(ctx context.Context, symbols []domain.Symbol) {
	for start := 0; start < len(symbols); start += initBatchSize {
		end := start + initBatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		var wg sync.WaitGroup
		for _, sym := range batch {
			wg.Add(1)
			go func(sym domain.Symbol) {
				defer wg.Done()
				s.initSymbol(ctx, sym)
			}(sym)
		}
		wg.Wait()

		if end < len(symbols) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(initBatchSpacing):
			}
		}
	}
}

func (s *Store) initSymbol(ctx context.Context, symbol domain.Symbol) {
	st := s.ensure(symbol)

	closes, err := s.exchange.GetKlines(ctx, symbol, "1m", seedKlineLimit)
	if err != nil {
		s.logger.Warn("failed to seed price history", "symbol", symbol, "err", err)
		return
	}

	st.mu.Lock()
	st.prices = domain.PriceSeries{Symbol: symbol}
	for _, c := range closes {
		st.prices.Append(decimal.NewFromFloat(c))
	}
	st.mu.Unlock()

	ticker, err := s.exchange.GetTicker(ctx, symbol)
	if err == nil {
		st.mu.Lock()
		t := ticker
		st.ticker = &t
		st.mu.Unlock()
	}
}

// IngestTicker updates the ticker cache and appends the latest price to the
// series, evicting beyond capacity.
func (s *Store) IngestTicker(update domain.Ticker) {
	st := s.ensure(update.Symbol)

	st.mu.Lock()
	defer st.mu.Unlock()
	t := update
	st.ticker = &t
	if st.prices.Symbol == "" {
		st.prices.Symbol = update.Symbol
	}
	st.prices.Append(update.LastPrice)
}

// IngestFunding updates the funding cache and appends to history, evicting
// beyond capacity.
func (s *Store) IngestFunding(update domain.Funding) {
	st := s.ensure(update.Symbol)

	st.mu.Lock()
	defer st.mu.Unlock()
	f := update
	st.funding = &f
	if st.fundings.Symbol == "" {
		st.fundings.Symbol = update.Symbol
	}
	st.fundings.Append(update)
}

func (s *Store) GetMarket(symbol domain.Symbol) (domain.Ticker, bool) {
	st, ok := s.lookup(symbol)
	if !ok {
		return domain.Ticker{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.ticker == nil {
		return domain.Ticker{}, false
	}
	return *st.ticker, true
}

func (s *Store) GetFunding(symbol domain.Symbol) (domain.Funding, bool) {
	st, ok := s.lookup(symbol)
	if !ok {
		return domain.Funding{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.funding == nil {
		return domain.Funding{}, false
	}
	return *st.funding, true
}

func (s *Store) GetPriceHistory(symbol domain.Symbol) domain.PriceSeries {
	st, ok := s.lookup(symbol)
	if !ok {
		return domain.PriceSeries{Symbol: symbol}
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := domain.PriceSeries{Symbol: st.prices.Symbol}
	out.Prices = append(out.Prices, st.prices.Prices...)
	return out
}

func (s *Store) GetFundingHistory(symbol domain.Symbol) domain.FundingHistory {
	st, ok := s.lookup(symbol)
	if !ok {
		return domain.FundingHistory{Symbol: symbol}
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := domain.FundingHistory{Symbol: st.fundings.Symbol}
	out.Entries = append(out.Entries, st.fundings.Entries...)
	return out
}

func (s *Store) GetAllSymbols() []domain.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Symbol, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	return out
}

// lookup never creates state implicitly, per spec.
func (s *Store) lookup(symbol domain.Symbol) (*symbolState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.symbols[symbol]
	return st, ok
}

// ensure creates per-symbol state on first write only (ingest/init paths).
func (s *Store) ensure(symbol domain.Symbol) *symbolState {
	s.mu.RLock()
	st, ok := s.symbols[symbol]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.symbols[symbol]; ok {
		return st
	}
	st = &symbolState{
		prices:   domain.PriceSeries{Symbol: symbol},
		fundings: domain.FundingHistory{Symbol: symbol},
	}
	s.symbols[symbol] = st
	return st
}
