package state

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
)

func TestGetMarket_UnknownSymbolReturnsFalse(t *testing.T) {
	s := NewStore(nil)
	_, ok := s.GetMarket("NOPEUSDT")
	assert.False(t, ok)
}

func TestIngestTicker_UpdatesCacheAndAppendsPrice(t *testing.T) {
	s := NewStore(nil)
	s.IngestTicker(domain.Ticker{Symbol: "BTCUSDT", LastPrice: decimal.NewFromInt(100)})
	s.IngestTicker(domain.Ticker{Symbol: "BTCUSDT", LastPrice: decimal.NewFromInt(101)})

	ticker, ok := s.GetMarket("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, decimal.NewFromInt(101), ticker.LastPrice)

	history := s.GetPriceHistory("BTCUSDT")
	assert.Len(t, history.Prices, 2)
}

func TestIngestFunding_UpdatesCacheAndAppendsHistory(t *testing.T) {
	s := NewStore(nil)
	s.IngestFunding(domain.Funding{Symbol: "BTCUSDT", Rate: decimal.NewFromFloat(0.01), Timestamp: time.Now()})
	s.IngestFunding(domain.Funding{Symbol: "BTCUSDT", Rate: decimal.NewFromFloat(0.02), Timestamp: time.Now()})

	funding, ok := s.GetFunding("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, decimal.NewFromFloat(0.02), funding.Rate)

	history := s.GetFundingHistory("BTCUSDT")
	assert.Len(t, history.Entries, 2)
}

func TestGetPriceHistory_UnknownSymbolReturnsEmptySeries(t *testing.T) {
	s := NewStore(nil)
	history := s.GetPriceHistory("GHOSTUSDT")
	assert.Empty(t, history.Prices)
	assert.Equal(t, domain.Symbol("GHOSTUSDT"), history.Symbol)
}

func TestGetAllSymbols_OnlyListsSymbolsWithState(t *testing.T) {
	s := NewStore(nil)
	s.IngestTicker(domain.Ticker{Symbol: "AUSDT", LastPrice: decimal.NewFromInt(1)})
	s.IngestFunding(domain.Funding{Symbol: "BUSDT", Rate: decimal.NewFromFloat(0.01)})

	all := s.GetAllSymbols()
	assert.Len(t, all, 2)
	assert.Contains(t, all, domain.Symbol("AUSDT"))
	assert.Contains(t, all, domain.Symbol("BUSDT"))
}

func TestGetPriceHistory_ReturnsIndependentCopy(t *testing.T) {
	s := NewStore(nil)
	s.IngestTicker(domain.Ticker{Symbol: "BTCUSDT", LastPrice: decimal.NewFromInt(100)})

	history := s.GetPriceHistory("BTCUSDT")
	history.Prices[0] = decimal.NewFromInt(999)

	fresh := s.GetPriceHistory("BTCUSDT")
	assert.Equal(t, decimal.NewFromInt(100), fresh.Prices[0])
}
