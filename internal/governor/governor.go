// Package governor enforces per-symbol cooldowns and a global hourly alert
// cap around signal dispatch. It prefers a Redis-backed store so limits
// survive process restarts and are shared across instances, but fails over
// permanently to an in-process store the first time Redis errors — a
// degraded pipeline should keep alerting rather than go silent.
package governor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/errs"
)

// Reason identifies why a dispatch attempt was suppressed.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonCooldown       Reason = "cooldown"
	ReasonRateLimited    Reason = "rate_limited"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonSinkFailure    Reason = "sink_failure"
)

// Decision is the outcome of a dispatch attempt.
type Decision struct {
	Sent       bool
	Suppressed Reason
}

type store interface {
	// checkAndRecordCooldown reports whether symbol is still within its cooldown
	// window, and records the given instant as the new cooldown start when
	// it returns false.
	checkAndRecordCooldown(ctx context.Context, symbol domain.Symbol, cooldown time.Duration, now time.Time) (active bool, err error)
	// clearCooldown undoes a cooldown recorded for a dispatch that was
	// ultimately not sent (e.g. sink delivery failed), so the next trigger
	// for symbol is free to retry immediately.
	clearCooldown(ctx context.Context, symbol domain.Symbol)
	// incrementHourly increments the counter for the current UTC clock hour
	// and returns the post-increment count.
	incrementHourly(ctx context.Context, now time.Time) (count int, err error)
	// decrementHourly rolls back a count incremented for a dispatch that was
	// ultimately not sent (e.g. sink delivery failed).
	decrementHourly(ctx context.Context, now time.Time)
}

// Governor gates signal dispatch behind cooldown and hourly rate-limit
// checks, performing the check and the record as one atomic step per
// symbol so concurrent callers cannot both slip through.
type Governor struct {
	cooldown      time.Duration
	maxPerHour    int
	logger        *slog.Logger
	mu            sync.Mutex
	activeStore   store
	usingFailover bool
}

// New constructs a Governor. If redisClient is nil, the in-process store is
// used from the start (e.g. no REDIS_ADDR configured).
func New(redisClient *redis.Client, cooldown time.Duration, maxPerHour int, logger *slog.Logger) *Governor {
	g := &Governor{
		cooldown:   cooldown,
		maxPerHour: maxPerHour,
		logger:     logger.With("component", "governor"),
	}
	if redisClient != nil {
		g.activeStore = newRedisStore(redisClient)
	} else {
		g.activeStore = newMemoryStore()
		g.usingFailover = true
	}
	return g
}

// TryDispatch performs the atomic check-then-record critical section: it
// checks the per-symbol cooldown and the global hourly cap, and if both
// pass, records the dispatch immediately so no concurrent caller can also
// pass for the same symbol or the same hour bucket. The record is
// provisional: callers that fail to actually deliver the signal must call
// Rollback so neither the cooldown nor the hourly budget is consumed,
// leaving the symbol eligible for retry on the next trigger.
func (g *Governor) TryDispatch(ctx context.Context, symbol domain.Symbol) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()

	active, err := g.activeStore.checkAndRecordCooldown(ctx, symbol, g.cooldown, now)
	if err != nil {
		g.failover(err)
		active, _ = g.activeStore.checkAndRecordCooldown(ctx, symbol, g.cooldown, now)
	}
	if active {
		return Decision{Sent: false, Suppressed: ReasonCooldown}
	}

	count, err := g.activeStore.incrementHourly(ctx, now)
	if err != nil {
		g.failover(err)
		count, _ = g.activeStore.incrementHourly(ctx, now)
	}
	if count > g.maxPerHour {
		g.activeStore.decrementHourly(ctx, now)
		g.activeStore.clearCooldown(ctx, symbol)
		return Decision{Sent: false, Suppressed: ReasonRateLimited}
	}

	return Decision{Sent: true}
}

// Rollback undoes both the cooldown and the hourly-counter increment
// recorded by TryDispatch for a dispatch that was permitted but failed to
// actually deliver (sink error), per the sink-failure contract on
// errs.SinkError: dispatch must not consume cooldown or rate budget when
// delivery fails.
func (g *Governor) Rollback(ctx context.Context, symbol domain.Symbol) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activeStore.clearCooldown(ctx, symbol)
	g.activeStore.decrementHourly(ctx, time.Now())
}

func (g *Governor) failover(err error) {
	if g.usingFailover {
		return
	}
	g.logger.Warn("redis store error, failing over to in-process limiter permanently", "error", err)
	g.activeStore = newMemoryStore()
	g.usingFailover = true
}

// --- in-process store ---

type memoryStore struct {
	mu          sync.Mutex
	cooldownEnd map[domain.Symbol]time.Time
	hourBucket  string
	hourCount   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{cooldownEnd: make(map[domain.Symbol]time.Time)}
}

func (m *memoryStore) checkAndRecordCooldown(_ context.Context, symbol domain.Symbol, cooldown time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until, ok := m.cooldownEnd[symbol]; ok && now.Before(until) {
		return true, nil
	}
	m.cooldownEnd[symbol] = now.Add(cooldown)
	return false, nil
}

func (m *memoryStore) clearCooldown(_ context.Context, symbol domain.Symbol) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cooldownEnd, symbol)
}

func (m *memoryStore) incrementHourly(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := hourBucketKey(now)
	if bucket != m.hourBucket {
		m.hourBucket = bucket
		m.hourCount = 0
	}
	m.hourCount++
	return m.hourCount, nil
}

func (m *memoryStore) decrementHourly(_ context.Context, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hourBucketKey(now) == m.hourBucket && m.hourCount > 0 {
		m.hourCount--
	}
}

// --- redis-backed store ---

type redisStore struct {
	c *redis.Client
}

func newRedisStore(c *redis.Client) *redisStore {
	return &redisStore{c: c}
}

func (r *redisStore) checkAndRecordCooldown(ctx context.Context, symbol domain.Symbol, cooldown time.Duration, _ time.Time) (bool, error) {
	key := fmt.Sprintf("governor:cooldown:%s", symbol)
	ok, err := r.c.SetNX(ctx, key, "1", cooldown).Result()
	if err != nil {
		return false, errs.NewStoreError("redis", err)
	}
	return !ok, nil
}

func (r *redisStore) clearCooldown(ctx context.Context, symbol domain.Symbol) {
	key := fmt.Sprintf("governor:cooldown:%s", symbol)
	r.c.Del(ctx, key)
}

func (r *redisStore) incrementHourly(ctx context.Context, now time.Time) (int, error) {
	key := fmt.Sprintf("governor:hourly:%s", hourBucketKey(now))
	n, err := r.c.Incr(ctx, key).Result()
	if err != nil {
		return 0, errs.NewStoreError("redis", err)
	}
	if n == 1 {
		r.c.Expire(ctx, key, time.Hour)
	}
	return int(n), nil
}

func (r *redisStore) decrementHourly(ctx context.Context, now time.Time) {
	key := fmt.Sprintf("governor:hourly:%s", hourBucketKey(now))
	r.c.Decr(ctx, key)
}

func hourBucketKey(t time.Time) string {
	return t.UTC().Format("2006010215")
}
