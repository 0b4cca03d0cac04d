// Package storage is the best-effort persistence layer. Writes run
// synchronously and return a StoreError on failure; the orchestrator logs
// that error and carries on, so a failed write never stops a dispatch.
package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/dynastyq/funding-signal-pipeline/internal/config"
	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/errs"
)

// DB wraps *sql.DB with the pool settings the pipeline runs under.
type DB struct {
	*sql.DB
}

func Connect(cfg config.PostgresConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectString())
	if err != nil {
		return nil, errs.NewStoreError("postgres", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errs.NewStoreError("postgres", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// SignalStore implements domain.SignalStore over the signals and
// funding_snapshots tables.
type SignalStore struct {
	db     *DB
	logger *slog.Logger
}

func NewSignalStore(db *DB, logger *slog.Logger) *SignalStore {
	return &SignalStore{db: db, logger: logger.With("component", "storage")}
}

// SaveSignal appends a dispatched signal. Errors are wrapped but never
// fatal to the caller's pipeline.
func (s *SignalStore) SaveSignal(ctx context.Context, signal domain.Signal) error {
	query := `
		INSERT INTO signals (
			symbol, type, bias, funding_rate, funding_delta, rsi, score,
			price, timeframe, context, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err := s.db.ExecContext(ctx, query,
		signal.Symbol.String(), string(signal.Type), string(signal.Bias),
		signal.FundingRate, signal.FundingDelta, signal.RSI, signal.Score,
		signal.Price, signal.Timeframe, signal.Context,
	)
	if err != nil {
		return errs.NewStoreError("postgres", err)
	}
	return nil
}

// SaveFundingSnapshot appends a point-in-time market observation,
// independent of whether a signal fired.
func (s *SignalStore) SaveFundingSnapshot(ctx context.Context, symbol domain.Symbol, funding, price, volume24h, rsi float64) error {
	query := `
		INSERT INTO funding_snapshots (symbol, funding_rate, price, volume_24h, rsi, observed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := s.db.ExecContext(ctx, query, symbol.String(), funding, price, volume24h, rsi)
	if err != nil {
		return errs.NewStoreError("postgres", err)
	}
	return nil
}
