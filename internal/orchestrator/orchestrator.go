// Package orchestrator is the Scheduler: it drives the processSymbol
// pipeline from two triggers — every streamed ticker/funding update, and a
// periodic priority-bucketed sweep over the whole universe — and relies on
// the Dispatch Governor for idempotence when both triggers race on the same
// symbol.
package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dynastyq/funding-signal-pipeline/internal/config"
	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/funding"
	"github.com/dynastyq/funding-signal-pipeline/internal/governor"
	"github.com/dynastyq/funding-signal-pipeline/internal/indicators"
	"github.com/dynastyq/funding-signal-pipeline/internal/rules"
	"github.com/dynastyq/funding-signal-pipeline/internal/scoring"
	"github.com/dynastyq/funding-signal-pipeline/internal/state"
)

const (
	sweepInterval = 5 * time.Minute

	highPriorityBatchSize   = 5
	normalPriorityBatchSize = 10
	interBatchDelay         = 1000 * time.Millisecond

	highPriorityFundingAbs = 0.03
	highPriorityVelocity   = 0.0001
	highPriorityRSIHi      = 70.0
	highPriorityRSILo      = 30.0

	streamWorkerCount = 5
)

// Orchestrator wires the Market State Store, Rule Evaluator, Scorer,
// Dispatch Governor, persistence, and notification sinks into the end to
// end pipeline.
type Orchestrator struct {
	cfg       *config.Config
	store     *state.Store
	transport domain.StreamTransport
	governor  *governor.Governor
	sink      domain.NotifySink
	signals   domain.SignalStore // nil if persistence disabled
	logger    *slog.Logger

	triggerChan chan domain.Symbol
}

// New constructs an Orchestrator. signals may be nil to disable
// persistence entirely.
func New(cfg *config.Config, store *state.Store, transport domain.StreamTransport, gov *governor.Governor, sink domain.NotifySink, signals domain.SignalStore, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		store:       store,
		transport:   transport,
		governor:    gov,
		sink:        sink,
		signals:     signals,
		logger:      logger.With("component", "orchestrator"),
		triggerChan: make(chan domain.Symbol, 1024),
	}
}

// Run starts the streaming-trigger dispatcher, its worker pool, and the
// periodic sweep loop. It blocks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < streamWorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.streamWorker(ctx)
		}()
	}

	go o.sweepLoop(ctx)

	fundingCh := o.transport.FundingStream()
	tickerCh := o.transport.TickerStream()

	for {
		select {
		case f, ok := <-fundingCh:
			if !ok {
				fundingCh = nil
				continue
			}
			o.store.IngestFunding(f)
			o.enqueueTrigger(f.Symbol)
		case t, ok := <-tickerCh:
			if !ok {
				tickerCh = nil
				continue
			}
			o.store.IngestTicker(t)
			o.enqueueTrigger(t.Symbol)
		case <-ctx.Done():
			close(o.triggerChan)
			wg.Wait()
			return
		}
	}
}

func (o *Orchestrator) enqueueTrigger(symbol domain.Symbol) {
	select {
	case o.triggerChan <- symbol:
	default:
		o.logger.Warn("trigger queue full, dropping streaming trigger", "symbol", symbol)
	}
}

func (o *Orchestrator) streamWorker(ctx context.Context) {
	for symbol := range o.triggerChan {
		o.processSymbol(ctx, symbol)
	}
}

// sweepLoop runs the periodic priority-bucketed sweep every 5 minutes.
func (o *Orchestrator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) sweep(ctx context.Context) {
	symbols := o.store.GetAllSymbols()

	var high, normal []domain.Symbol
	for _, sym := range symbols {
		if o.isHighPriority(sym) {
			high = append(high, sym)
		} else {
			normal = append(normal, sym)
		}
	}

	o.logger.Debug("sweep starting", "high_priority", len(high), "normal_priority", len(normal))

	o.processBatched(ctx, high, highPriorityBatchSize)
	o.processBatched(ctx, normal, normalPriorityBatchSize)
}

func (o *Orchestrator) processBatched(ctx context.Context, symbols []domain.Symbol, batchSize int) {
	for start := 0; start < len(symbols); start += batchSize {
		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		var wg sync.WaitGroup
		for _, sym := range symbols[start:end] {
			wg.Add(1)
			go func(sym domain.Symbol) {
				defer wg.Done()
				o.processSymbol(ctx, sym)
			}(sym)
		}
		wg.Wait()

		if end < len(symbols) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interBatchDelay):
			}
		}
	}
}

func (o *Orchestrator) isHighPriority(symbol domain.Symbol) bool {
	fundingRate, hasFunding := o.store.GetFunding(symbol)
	if hasFunding {
		rate, _ := fundingRate.Rate.Float64()
		if math.Abs(rate) >= highPriorityFundingAbs {
			return true
		}
		if math.Abs(funding.Velocity(o.store.GetFundingHistory(symbol))) >= highPriorityVelocity {
			return true
		}
	}

	history := o.store.GetPriceHistory(symbol)
	if rsi, ok := indicators.RSI(history.Floats(), indicators.DefaultRSIPeriod); ok && (rsi >= highPriorityRSIHi || rsi <= highPriorityRSILo) {
		return true
	}
	return false
}

// processSymbol is the shared pipeline: build context, evaluate rules,
// score, govern, persist, deliver. Idempotent under double-triggering
// because the Dispatch Governor's check-and-record is atomic per symbol.
func (o *Orchestrator) processSymbol(ctx context.Context, symbol domain.Symbol) {
	ticker, hasTicker := o.store.GetMarket(symbol)
	fundingRate, hasFunding := o.store.GetFunding(symbol)
	if !hasTicker || !hasFunding {
		return
	}

	var btc *domain.BTCContext
	if o.cfg.BTC.Enabled && symbol != domain.Symbol(o.cfg.BTC.Symbol) {
		if bt, ok := o.store.GetMarket(domain.Symbol(o.cfg.BTC.Symbol)); ok {
			if bf, ok := o.store.GetFunding(domain.Symbol(o.cfg.BTC.Symbol)); ok {
				price, _ := bt.LastPrice.Float64()
				rate, _ := bf.Rate.Float64()
				btc = &domain.BTCContext{Price: price, FundingRate: rate}
			}
		}
	}

	inputs := rules.Inputs{
		Ticker:      ticker,
		HasTicker:   hasTicker,
		Funding:     fundingRate,
		HasFunding:  hasFunding,
		PriceSeries: o.store.GetPriceHistory(symbol),
		FundingHist: o.store.GetFundingHistory(symbol),
		BTC:         btc,
	}

	sigCtx, ok := rules.BuildContext(symbol, inputs)
	if !ok {
		return
	}

	signal, ok := rules.Evaluate(sigCtx)
	if !ok {
		return
	}

	result := o.score(sigCtx, btc)
	signal.Score = result.Score

	if o.signals != nil {
		rsi := 0.0
		if sigCtx.RSI != nil {
			rsi = *sigCtx.RSI
		}
		if err := o.signals.SaveFundingSnapshot(ctx, symbol, sigCtx.FundingRate, sigCtx.Price, sigCtx.Volume24h, rsi); err != nil {
			o.logger.Warn("failed to persist funding snapshot", "symbol", symbol, "err", err)
		}
	}

	if !result.MeetsThreshold {
		return
	}

	decision := o.governor.TryDispatch(ctx, symbol)
	if !decision.Sent {
		o.logger.Debug("suppressed", "symbol", symbol, "reason", decision.Suppressed)
		return
	}

	if o.signals != nil {
		if err := o.signals.SaveSignal(ctx, signal); err != nil {
			o.logger.Warn("failed to persist signal", "symbol", symbol, "err", err)
		}
	}

	if err := o.sink.Deliver(ctx, signal); err != nil {
		o.logger.Error("sink delivery failed", "symbol", symbol, "err", err)
		o.governor.Rollback(ctx, symbol)
		return
	}

	o.logger.Info("signal dispatched", "symbol", symbol, "type", signal.Type, "bias", signal.Bias, "score", signal.Score)
}

func (o *Orchestrator) score(ctx domain.SignalContext, btc *domain.BTCContext) scoring.Result {
	factors := scoring.Factors{
		FundingRate:  ctx.FundingRate,
		FundingDelta: floatPtr(ctx.FundingDelta),
		RSI:          ctx.RSI,
		Momentum:     ctx.Momentum,
		HasVolume:    ctx.Volume24h > 0,
	}
	if btc != nil {
		abs := math.Abs(btc.FundingRate)
		factors.BTCFundingAbs = &abs
	}
	return scoring.Score(factors, o.cfg.Scoring.MinScoreThreshold)
}

func floatPtr(v float64) *float64 {
	return &v
}
