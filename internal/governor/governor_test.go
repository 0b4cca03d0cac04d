package governor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
)

func newTestGovernor(cooldown time.Duration, maxPerHour int) *Governor {
	return New(nil, cooldown, maxPerHour, slog.Default())
}

func TestTryDispatch_FirstAttemptSucceeds(t *testing.T) {
	g := newTestGovernor(time.Minute, 10)
	decision := g.TryDispatch(context.Background(), "BTCUSDT")
	assert.True(t, decision.Sent)
}

func TestTryDispatch_CooldownSuppressesSecondAttempt(t *testing.T) {
	g := newTestGovernor(time.Minute, 10)
	ctx := context.Background()

	first := g.TryDispatch(ctx, "BTCUSDT")
	require.True(t, first.Sent)

	second := g.TryDispatch(ctx, "BTCUSDT")
	assert.False(t, second.Sent)
	assert.Equal(t, ReasonCooldown, second.Suppressed)
}

func TestTryDispatch_DistinctSymbolsDoNotShareCooldown(t *testing.T) {
	g := newTestGovernor(time.Minute, 10)
	ctx := context.Background()

	assert.True(t, g.TryDispatch(ctx, "BTCUSDT").Sent)
	assert.True(t, g.TryDispatch(ctx, "ETHUSDT").Sent)
}

func TestTryDispatch_HourlyCapSuppresses(t *testing.T) {
	g := newTestGovernor(0, 2)
	ctx := context.Background()

	symbols := []domain.Symbol{"AUSDT", "BUSDT", "CUSDT"}
	var sent, suppressed int
	for _, s := range symbols {
		d := g.TryDispatch(ctx, s)
		if d.Sent {
			sent++
		} else {
			suppressed++
			assert.Equal(t, ReasonRateLimited, d.Suppressed)
		}
	}
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, suppressed)
}

func TestRollback_FreesHourlyBudget(t *testing.T) {
	g := newTestGovernor(0, 1)
	ctx := context.Background()

	first := g.TryDispatch(ctx, "AUSDT")
	require.True(t, first.Sent)

	g.Rollback(ctx, "AUSDT")

	second := g.TryDispatch(ctx, "BUSDT")
	assert.True(t, second.Sent)
}

func TestRollback_FreesCooldownForRetry(t *testing.T) {
	g := newTestGovernor(time.Minute, 10)
	ctx := context.Background()

	first := g.TryDispatch(ctx, "BTCUSDT")
	require.True(t, first.Sent)

	g.Rollback(ctx, "BTCUSDT")

	second := g.TryDispatch(ctx, "BTCUSDT")
	assert.True(t, second.Sent, "a rolled-back dispatch must not burn the symbol's cooldown")
}
