// Package universe constructs the monitored symbol set once at startup by
// intersecting listing metadata with quality thresholds and a blacklist.
package universe

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dynastyq/funding-signal-pipeline/internal/config"
	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
)

type Loader struct {
	exchange domain.ExchangeClient
	cfg      config.UniverseConfig
	logger   *slog.Logger
}

func NewLoader(exchange domain.ExchangeClient, cfg config.UniverseConfig) *Loader {
	return &Loader{
		exchange: exchange,
		cfg:      cfg,
		logger:   slog.Default().With("component", "universe_loader"),
	}
}

// Load fetches instruments and a bulk ticker snapshot, applies the
// configured thresholds, and returns the accepted symbol set. Instrument
// fetch failure is fatal and propagates; bulk ticker failure degrades to
// the unfiltered instrument list.
func (l *Loader) Load(ctx context.Context) (map[domain.Symbol]struct{}, error) {
	instruments, err := l.exchange.GetInstruments(ctx)
	if err != nil {
		return nil, err
	}

	trading := make(map[domain.Symbol]struct{})
	for _, i := range instruments {
		if i.Status != "Trading" || i.QuoteCoin != "USDT" {
			continue
		}
		trading[i.Symbol] = struct{}{}
	}

	tickers, err := l.exchange.GetTickers(ctx)
	if err != nil {
		l.logger.Warn("bulk ticker fetch failed, degrading to unfiltered instrument list", "err", err)
		accepted := make(map[domain.Symbol]struct{}, len(trading))
		for s := range trading {
			accepted[s] = struct{}{}
		}
		return accepted, nil
	}

	blacklist := make(map[domain.Symbol]struct{}, len(l.cfg.BlacklistSymbols))
	for _, s := range l.cfg.BlacklistSymbols {
		blacklist[domain.NormalizeSymbol(s)] = struct{}{}
	}

	rejections := map[string]int{
		"not_trading":     0,
		"volume":          0,
		"open_interest":   0,
		"price_range":     0,
		"funding_missing": 0,
		"blacklisted":     0,
	}

	accepted := make(map[domain.Symbol]struct{})
	for _, t := range tickers {
		if _, ok := trading[t.Symbol]; !ok {
			rejections["not_trading"]++
			continue
		}
		if _, blocked := blacklist[t.Symbol]; blocked {
			rejections["blacklisted"]++
			continue
		}

		volume, _ := t.Turnover24h.Float64()
		if volume < l.cfg.MinVolume24hUSDT {
			rejections["volume"]++
			continue
		}

		oiValue, _ := t.OpenInterestValue.Float64()
		if oiValue == 0 {
			oiAmount, _ := t.OpenInterestAmount.Float64()
			if oiAmount < l.cfg.MinOpenInterestUSDT/1000 {
				rejections["open_interest"]++
				continue
			}
		} else if oiValue < l.cfg.MinOpenInterestUSDT {
			rejections["open_interest"]++
			continue
		}

		price, _ := t.LastPrice.Float64()
		if price < l.cfg.MinPriceUSDT || price > l.cfg.MaxPriceUSDT {
			rejections["price_range"]++
			continue
		}

		if strings.TrimSpace(t.FundingRateRaw) == "" {
			rejections["funding_missing"]++
			continue
		}

		accepted[t.Symbol] = struct{}{}
	}

	l.logger.Info("universe loaded",
		"accepted", len(accepted),
		"not_trading", rejections["not_trading"],
		"volume", rejections["volume"],
		"open_interest", rejections["open_interest"],
		"price_range", rejections["price_range"],
		"funding_missing", rejections["funding_missing"],
		"blacklisted", rejections["blacklisted"],
	)

	return accepted, nil
}
