package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
)

func priceSeries(n int, fn func(i int) float64) domain.PriceSeries {
	ps := domain.PriceSeries{Symbol: "BTCUSDT"}
	for i := 0; i < n; i++ {
		ps.Append(decimal.NewFromFloat(fn(i)))
	}
	return ps
}

func fundingHistory(rates ...float64) domain.FundingHistory {
	fh := domain.FundingHistory{Symbol: "BTCUSDT"}
	now := time.Now()
	for i, r := range rates {
		fh.Append(domain.Funding{
			Symbol:    "BTCUSDT",
			Rate:      decimal.NewFromFloat(r),
			Timestamp: now.Add(time.Duration(i) * time.Hour),
		})
	}
	return fh
}

func TestBuildContext_RejectsShortHistory(t *testing.T) {
	in := Inputs{
		HasTicker:   true,
		HasFunding:  true,
		Ticker:      domain.Ticker{LastPrice: decimal.NewFromInt(100), Turnover24h: decimal.NewFromInt(1_000_000)},
		Funding:     domain.Funding{Rate: decimal.NewFromFloat(0.02)},
		PriceSeries: priceSeries(10, func(i int) float64 { return 100 + float64(i) }),
	}
	_, ok := BuildContext("BTCUSDT", in)
	assert.False(t, ok)
}

func TestBuildContext_EarlyExitsOnNeutralFundingWithoutRSIExtreme(t *testing.T) {
	// An alternating +1/-1 price series keeps RSI near 50 (not extreme), and
	// funding is inside the +-0.01 neutral band, so the gate should reject.
	in := Inputs{
		HasTicker:  true,
		HasFunding: true,
		Ticker:     domain.Ticker{LastPrice: decimal.NewFromInt(100), Turnover24h: decimal.NewFromInt(1_000_000)},
		Funding:    domain.Funding{Rate: decimal.NewFromFloat(0.002)},
		PriceSeries: priceSeries(25, func(i int) float64 {
			if i%2 == 0 {
				return 100
			}
			return 101
		}),
	}
	_, ok := BuildContext("BTCUSDT", in)
	assert.False(t, ok)
}

func TestBuildContext_PassesOnExtremeFunding(t *testing.T) {
	in := Inputs{
		HasTicker:   true,
		HasFunding:  true,
		Ticker:      domain.Ticker{LastPrice: decimal.NewFromInt(100), Turnover24h: decimal.NewFromInt(1_000_000)},
		Funding:     domain.Funding{Rate: decimal.NewFromFloat(0.05)},
		FundingHist: fundingHistory(0.03, 0.05),
		PriceSeries: priceSeries(25, func(i int) float64 { return 100 + float64(i) }),
	}
	ctx, ok := BuildContext("BTCUSDT", in)
	require.True(t, ok)
	assert.Equal(t, domain.Symbol("BTCUSDT"), ctx.Symbol)
	assert.NotNil(t, ctx.RSI)
	assert.NotNil(t, ctx.Momentum)
}

func TestEvaluate_RSIConfluenceLong(t *testing.T) {
	rsi, momentum := 25.0, -0.5
	ctx := domain.SignalContext{
		Symbol:      "XYZUSDT",
		FundingRate: -0.02,
		RSI:         &rsi,
		Momentum:    &momentum,
	}
	signal, ok := Evaluate(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.SignalTypeReversal, signal.Type)
	assert.Equal(t, domain.BiasLong, signal.Bias)
	assert.Equal(t, "SHORT Overcrowded", signal.FundingBiasLabel)
}

func TestEvaluate_RSIConfluenceShort(t *testing.T) {
	rsi, momentum := 80.0, 0.5
	ctx := domain.SignalContext{
		Symbol:      "XYZUSDT",
		FundingRate: 0.02,
		RSI:         &rsi,
		Momentum:    &momentum,
	}
	signal, ok := Evaluate(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.BiasShort, signal.Bias)
	assert.Equal(t, "LONG Overcrowded", signal.FundingBiasLabel)
}

func TestEvaluate_OverextensionReversalLong(t *testing.T) {
	// rsi=30 (not <30) keeps RSI Confluence from matching first, so this
	// exercises Overextension Reversal specifically.
	rsi, momentum := 30.0, -1.5
	ctx := domain.SignalContext{
		Symbol:       "XYZUSDT",
		FundingRate:  -0.05,
		FundingDelta: -0.01,
		RSI:          &rsi,
		Momentum:     &momentum,
	}
	signal, ok := Evaluate(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.SignalTypeReversal, signal.Type)
	assert.Equal(t, domain.BiasLong, signal.Bias)
}

func TestEvaluate_TrendConfirmationLong(t *testing.T) {
	// Outside the RSI-confluence and overextension bands so trend
	// confirmation is reached.
	rsi, momentum := 55.0, 0.8
	ctx := domain.SignalContext{
		Symbol:       "XYZUSDT",
		FundingRate:  0.01,
		FundingDelta: 0.002,
		RSI:          &rsi,
		Momentum:     &momentum,
	}
	signal, ok := Evaluate(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.SignalTypeTrend, signal.Type)
	assert.Equal(t, domain.BiasLong, signal.Bias)
	assert.Equal(t, "LONG Overcrowded", signal.FundingBiasLabel)
}

func TestEvaluate_DivergenceShort(t *testing.T) {
	// momentum=+1.5, funding=-0.008% per the spec's worked DIVERGENCE/SHORT
	// scenario.
	rsi, momentum := 62.0, 1.5
	ctx := domain.SignalContext{
		Symbol:      "XYZUSDT",
		FundingRate: -0.008,
		RSI:         &rsi,
		Momentum:    &momentum,
	}
	signal, ok := Evaluate(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.SignalTypeDivergence, signal.Type)
	assert.Equal(t, domain.BiasShort, signal.Bias)
}

func TestEvaluate_NoRuleMatches(t *testing.T) {
	rsi, momentum := 50.0, 0.1
	ctx := domain.SignalContext{
		Symbol:      "XYZUSDT",
		FundingRate: 0.001,
		RSI:         &rsi,
		Momentum:    &momentum,
	}
	_, ok := Evaluate(ctx)
	assert.False(t, ok)
}

func TestEvaluate_MissingIndicatorsNeverFires(t *testing.T) {
	ctx := domain.SignalContext{Symbol: "XYZUSDT", FundingRate: -0.05}
	_, ok := Evaluate(ctx)
	assert.False(t, ok)
}

func TestBuildSignal_MovementFloor(t *testing.T) {
	rsi, momentum := 25.0, -0.5
	ctx := domain.SignalContext{Symbol: "XYZUSDT", FundingRate: -0.02, RSI: &rsi, Momentum: &momentum}
	signal, ok := Evaluate(ctx)
	require.True(t, ok)
	assert.Equal(t, defaultMovementFloor, signal.Movement.Up)
	assert.Equal(t, defaultMovementFloor, signal.Movement.Down)
}
