package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSeriesCapacity is the hard cap on close prices retained per symbol.
const PriceSeriesCapacity = 100

// FundingHistoryCapacity is the hard cap on funding observations retained
// per symbol.
const FundingHistoryCapacity = 10

// Ticker is the most recent observation of a symbol's price/turnover/open
// interest, written by either transport.
type Ticker struct {
	Symbol             Symbol
	LastPrice          decimal.Decimal
	Turnover24h        decimal.Decimal
	OpenInterestValue  decimal.Decimal
	OpenInterestAmount decimal.Decimal
	Timestamp          time.Time

	// FundingRateRaw is the exchange's raw fundingRate field as returned by
	// the bulk ticker snapshot, used only by the Universe Loader's
	// present/non-empty check. The canonical, percent-scaled funding
	// observation lives in Funding, not here.
	FundingRateRaw string
}

// Funding is a single funding-rate observation. Rate is expressed in
// percent (the exchange's fractional value multiplied by 100 on ingress).
type Funding struct {
	Symbol          Symbol
	Rate            decimal.Decimal
	NextFundingTime time.Time
	Timestamp       time.Time
}

// PriceSeries is an ordered, oldest-first, capacity-bounded close-price
// history for one symbol.
type PriceSeries struct {
	Symbol Symbol
	Prices []decimal.Decimal
}

// Append adds a close price, evicting the oldest entry once the series
// exceeds PriceSeriesCapacity.
func (s *PriceSeries) Append(price decimal.Decimal) {
	s.Prices = append(s.Prices, price)
	if len(s.Prices) > PriceSeriesCapacity {
		s.Prices = s.Prices[len(s.Prices)-PriceSeriesCapacity:]
	}
}

// Floats returns the series as float64 for indicator math, oldest first.
func (s *PriceSeries) Floats() []float64 {
	out := make([]float64, len(s.Prices))
	for i, p := range s.Prices {
		out[i] = p.InexactFloat64()
	}
	return out
}

// FundingHistory is an ordered, oldest-first, capacity-bounded funding
// history for one symbol.
type FundingHistory struct {
	Symbol  Symbol
	Entries []Funding
}

// Append adds a funding observation, evicting the oldest entry once the
// history exceeds FundingHistoryCapacity.
func (h *FundingHistory) Append(f Funding) {
	h.Entries = append(h.Entries, f)
	if len(h.Entries) > FundingHistoryCapacity {
		h.Entries = h.Entries[len(h.Entries)-FundingHistoryCapacity:]
	}
}

// Latest returns the most recent funding entry, if any.
func (h *FundingHistory) Latest() (Funding, bool) {
	if len(h.Entries) == 0 {
		return Funding{}, false
	}
	return h.Entries[len(h.Entries)-1], true
}

// Previous returns the second-most-recent funding entry, if any.
func (h *FundingHistory) Previous() (Funding, bool) {
	if len(h.Entries) < 2 {
		return Funding{}, false
	}
	return h.Entries[len(h.Entries)-2], true
}
