package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dynastyq/funding-signal-pipeline/internal/config"
	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/exchange"
	"github.com/dynastyq/funding-signal-pipeline/internal/governor"
	"github.com/dynastyq/funding-signal-pipeline/internal/notify"
	"github.com/dynastyq/funding-signal-pipeline/internal/orchestrator"
	"github.com/dynastyq/funding-signal-pipeline/internal/state"
	"github.com/dynastyq/funding-signal-pipeline/internal/storage"
	"github.com/dynastyq/funding-signal-pipeline/internal/stream"
	"github.com/dynastyq/funding-signal-pipeline/internal/universe"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[main] received shutdown signal")
		cancel()
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("env", cfg.Env)
	logger.Info("starting funding signal pipeline", "testnet", cfg.BybitTestnet)

	exchangeClient := exchange.NewClient(cfg.BybitTestnet)

	loader := universe.NewLoader(exchangeClient, cfg.Universe)
	symbolSet, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load universe: %v", err)
	}

	symbols := make([]domain.Symbol, 0, len(symbolSet))
	for sym := range symbolSet {
		symbols = append(symbols, sym)
	}

	marketStore := state.NewStore(exchangeClient)
	marketStore.InitUniverse(ctx, symbols)
	logger.Info("universe seeded", "count", len(symbols))

	transport := stream.NewTransport(cfg.BybitTestnet)
	for _, sym := range symbols {
		if err := transport.Subscribe(sym); err != nil {
			logger.Warn("subscribe failed", "symbol", sym, "err", err)
		}
	}
	if cfg.BTC.Enabled {
		if err := transport.Subscribe(domain.Symbol(cfg.BTC.Symbol)); err != nil {
			logger.Warn("BTC context subscribe failed", "err", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	gov := governor.New(redisClient, time.Duration(cfg.Governor.CooldownSeconds)*time.Second, cfg.Governor.MaxAlertsPerHour, logger)

	var signalStore domain.SignalStore
	if cfg.Postgres.Host != "" {
		db, err := storage.Connect(cfg.Postgres)
		if err != nil {
			logger.Warn("postgres unavailable, persistence disabled", "err", err)
		} else {
			defer db.Close()
			signalStore = storage.NewSignalStore(db, logger)
		}
	}

	primarySink := notify.NewWebhookSink(cfg.Webhook.URL)

	var secondarySinks []domain.NotifySink
	if cfg.Telegram.BotToken != "" {
		tgSink, err := notify.NewTelegramSink(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn("telegram sink disabled", "err", err)
		} else {
			secondarySinks = append(secondarySinks, tgSink)
		}
	}

	sink := notify.NewFan(primarySink, logger, secondarySinks...)

	orch := orchestrator.New(cfg, marketStore, transport, gov, sink, signalStore, logger)

	logger.Info("pipeline running")
	orch.Run(ctx)

	if err := transport.Close(); err != nil {
		logger.Warn("transport close error", "err", err)
	}
	logger.Info("pipeline stopped")
}
