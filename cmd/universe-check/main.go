// Command universe-check is a one-shot diagnostic: it loads the monitored
// universe exactly as the pipeline would at startup and prints the result,
// without opening any streaming connection.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"sort"

	"github.com/dynastyq/funding-signal-pipeline/internal/config"
	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/exchange"
	"github.com/dynastyq/funding-signal-pipeline/internal/universe"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	exchangeClient := exchange.NewClient(cfg.BybitTestnet)
	loader := universe.NewLoader(exchangeClient, cfg.Universe)

	symbolSet, err := loader.Load(context.Background())
	if err != nil {
		log.Fatalf("universe load failed: %v", err)
	}

	symbols := make([]domain.Symbol, 0, len(symbolSet))
	for sym := range symbolSet {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	log.Printf("accepted %d symbols", len(symbols))
	for _, sym := range symbols {
		log.Println(sym.String())
	}
}
