// Package rules applies the ordered rule set to a per-symbol context and
// yields at most one candidate signal. The evaluator does not consult
// cooldown/rate-limit state; that is the Dispatch Governor's job.
package rules

import (
	"fmt"
	"math"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/funding"
	"github.com/dynastyq/funding-signal-pipeline/internal/indicators"
)

const (
	earlyExitFundingBand  = 0.01
	earlyExitRSIExtremeHi = 75.0
	earlyExitRSIExtremeLo = 25.0
	defaultMovementFloor  = 2.0
	timeframeTag          = "1m"
)

// Inputs bundles what BuildContext needs from the Market State Store,
// Indicator Engine, and Funding Tracker.
type Inputs struct {
	Ticker      domain.Ticker
	HasTicker   bool
	Funding     domain.Funding
	HasFunding  bool
	PriceSeries domain.PriceSeries
	FundingHist domain.FundingHistory
	BTC         *domain.BTCContext
}

// BuildContext implements the early-exit gate of spec.md §4.7: it requires
// a ticker, funding, and a price series of length >= 20; if the funding
// rate is near zero it aborts unless RSI is extreme.
func BuildContext(symbol domain.Symbol, in Inputs) (domain.SignalContext, bool) {
	if !in.HasTicker || !in.HasFunding || len(in.PriceSeries.Prices) < 20 {
		return domain.SignalContext{}, false
	}

	fundingRate, _ := in.Funding.Rate.Float64()
	prices := in.PriceSeries.Floats()

	if math.Abs(fundingRate) < earlyExitFundingBand {
		rsi, ok := indicators.RSI(prices, indicators.DefaultRSIPeriod)
		rsiExtreme := ok && (rsi > earlyExitRSIExtremeHi || rsi < earlyExitRSIExtremeLo)
		if !rsiExtreme {
			return domain.SignalContext{}, false
		}
	}

	price, _ := in.Ticker.LastPrice.Float64()
	volume, _ := in.Ticker.Turnover24h.Float64()

	ctx := domain.SignalContext{
		Symbol:       symbol,
		FundingRate:  fundingRate,
		FundingDelta: funding.Delta(in.FundingHist),
		Price:        price,
		Volume24h:    volume,
		BTC:          in.BTC,
	}

	if rsi, ok := indicators.RSI(prices, indicators.DefaultRSIPeriod); ok {
		ctx.RSI = &rsi
	}
	if momentum, ok := indicators.Momentum(prices, indicators.DefaultMomentumPeriod); ok {
		ctx.Momentum = &momentum
	}

	return ctx, true
}

// Evaluate applies the ordered rule set — RSI Confluence, Overextension
// Reversal, Trend Confirmation, Divergence — first match wins.
func Evaluate(ctx domain.SignalContext) (domain.Signal, bool) {
	if ctx.RSI == nil || ctx.Momentum == nil {
		return evaluateWithoutIndicators(ctx)
	}
	rsi, momentum := *ctx.RSI, *ctx.Momentum

	const (
		sameSideOvercrowded     = true
		oppositeSideOvercrowded = false
	)

	if bias, ok := rsiConfluence(ctx.FundingRate, rsi); ok {
		return buildSignal(ctx, domain.SignalTypeReversal, bias, rsi, momentum, oppositeSideOvercrowded), true
	}
	if bias, ok := overextensionReversal(ctx.FundingRate, rsi, momentum, ctx.FundingDelta); ok {
		return buildSignal(ctx, domain.SignalTypeReversal, bias, rsi, momentum, oppositeSideOvercrowded), true
	}
	if bias, ok := trendConfirmation(ctx.FundingRate, ctx.FundingDelta, momentum); ok {
		return buildSignal(ctx, domain.SignalTypeTrend, bias, rsi, momentum, sameSideOvercrowded), true
	}
	if bias, ok := divergence(momentum, ctx.FundingRate); ok {
		return buildSignal(ctx, domain.SignalTypeDivergence, bias, rsi, momentum, oppositeSideOvercrowded), true
	}

	return domain.Signal{}, false
}

// evaluateWithoutIndicators covers contexts built with RSI/Momentum absent
// (e.g. insufficient history past the early-exit gate); none of the four
// rules can fire without both values, so no candidate is produced.
func evaluateWithoutIndicators(_ domain.SignalContext) (domain.Signal, bool) {
	return domain.Signal{}, false
}

func rsiConfluence(fundingRate, rsi float64) (domain.Bias, bool) {
	if rsi < 30 && fundingRate < -0.01 {
		return domain.BiasLong, true
	}
	if rsi > 75 && fundingRate > 0.01 {
		return domain.BiasShort, true
	}
	return "", false
}

func overextensionReversal(fundingRate, rsi, momentum, delta float64) (domain.Bias, bool) {
	if fundingRate <= -0.04 && rsi <= 30 && momentum < -1.0 && delta < 0 {
		return domain.BiasLong, true
	}
	if fundingRate >= 0.04 && rsi >= 70 && momentum > 1.0 && delta > 0 {
		return domain.BiasShort, true
	}
	return "", false
}

func trendConfirmation(fundingRate, delta, momentum float64) (domain.Bias, bool) {
	if fundingRate >= 0.005 && fundingRate <= 0.02 && delta > 0 && momentum > 0 {
		return domain.BiasLong, true
	}
	if fundingRate <= -0.005 && fundingRate >= -0.02 && delta < 0 && momentum < 0 {
		return domain.BiasShort, true
	}
	return "", false
}

func divergence(momentum, fundingRate float64) (domain.Bias, bool) {
	if momentum < -1.0 && fundingRate > 0.005 {
		return domain.BiasLong, true
	}
	if momentum > 1.0 && fundingRate < -0.005 {
		return domain.BiasShort, true
	}
	return "", false
}

// fundingBiasLabel picks the overcrowded side per spec.md's rule table:
// RSI Confluence, Overextension, and Divergence label the side opposite the
// emitted bias as overcrowded; Trend Confirmation labels the same side.
func fundingBiasLabel(bias domain.Bias, sameSideOvercrowded bool) string {
	overcrowded := oppositeBias(bias)
	if sameSideOvercrowded {
		overcrowded = bias
	}
	if overcrowded == domain.BiasLong {
		return "LONG Overcrowded"
	}
	return "SHORT Overcrowded"
}

func oppositeBias(bias domain.Bias) domain.Bias {
	if bias == domain.BiasLong {
		return domain.BiasShort
	}
	return domain.BiasLong
}

func buildSignal(ctx domain.SignalContext, t domain.SignalType, bias domain.Bias, rsi, momentum float64, sameSideOvercrowded bool) domain.Signal {
	momentumLabel := domain.MomentumExpansion
	if indicators.IsExhaustion(rsi, momentum) {
		momentumLabel = domain.MomentumExhaustion
	}

	up := math.Max(momentum, defaultMovementFloor)
	down := math.Max(-momentum, defaultMovementFloor)

	return domain.Signal{
		Symbol:           ctx.Symbol,
		Type:             t,
		Bias:             bias,
		FundingRate:      ctx.FundingRate,
		FundingDelta:     ctx.FundingDelta,
		RSI:              rsi,
		Price:            ctx.Price,
		Timeframe:        timeframeTag,
		Context:          fmt.Sprintf("funding=%.4f%% delta=%.4f%% rsi=%.2f momentum=%.2f%%", ctx.FundingRate, ctx.FundingDelta, rsi, momentum),
		MomentumLabel:    momentumLabel,
		FundingBiasLabel: fundingBiasLabel(bias, sameSideOvercrowded),
		Movement:         domain.Movement{Up: up, Down: down},
	}
}
