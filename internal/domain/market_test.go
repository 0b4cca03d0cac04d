package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceSeries_AppendEvictsBeyondCapacity(t *testing.T) {
	s := PriceSeries{Symbol: "BTCUSDT"}
	for i := 0; i < PriceSeriesCapacity+10; i++ {
		s.Append(decimal.NewFromInt(int64(i)))
	}
	assert.Len(t, s.Prices, PriceSeriesCapacity)
	assert.Equal(t, decimal.NewFromInt(10), s.Prices[0])
	assert.Equal(t, decimal.NewFromInt(int64(PriceSeriesCapacity+9)), s.Prices[len(s.Prices)-1])
}

func TestPriceSeries_Floats(t *testing.T) {
	s := PriceSeries{Symbol: "BTCUSDT"}
	s.Append(decimal.NewFromFloat(100.5))
	s.Append(decimal.NewFromFloat(101.25))

	floats := s.Floats()
	assert.Equal(t, []float64{100.5, 101.25}, floats)
}

func TestFundingHistory_AppendEvictsBeyondCapacity(t *testing.T) {
	h := FundingHistory{Symbol: "BTCUSDT"}
	for i := 0; i < FundingHistoryCapacity+3; i++ {
		h.Append(Funding{Rate: decimal.NewFromInt(int64(i))})
	}
	assert.Len(t, h.Entries, FundingHistoryCapacity)
	assert.Equal(t, decimal.NewFromInt(3), h.Entries[0].Rate)
}

func TestFundingHistory_LatestAndPrevious(t *testing.T) {
	h := FundingHistory{Symbol: "BTCUSDT"}
	_, ok := h.Latest()
	assert.False(t, ok)
	_, ok = h.Previous()
	assert.False(t, ok)

	h.Append(Funding{Rate: decimal.NewFromFloat(0.01)})
	latest, ok := h.Latest()
	assert.True(t, ok)
	assert.Equal(t, decimal.NewFromFloat(0.01), latest.Rate)
	_, ok = h.Previous()
	assert.False(t, ok)

	h.Append(Funding{Rate: decimal.NewFromFloat(0.02)})
	latest, ok = h.Latest()
	assert.True(t, ok)
	assert.Equal(t, decimal.NewFromFloat(0.02), latest.Rate)
	previous, ok := h.Previous()
	assert.True(t, ok)
	assert.Equal(t, decimal.NewFromFloat(0.01), previous.Rate)
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, Symbol("BTCUSDT"), NormalizeSymbol("  btcusdt "))
}
