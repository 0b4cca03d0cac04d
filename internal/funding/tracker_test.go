package funding

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
)

func TestDelta_InsufficientHistory(t *testing.T) {
	h := domain.FundingHistory{Symbol: "BTCUSDT"}
	assert.Equal(t, 0.0, Delta(h))

	h.Append(domain.Funding{Rate: decimal.NewFromFloat(0.01)})
	assert.Equal(t, 0.0, Delta(h))
}

func TestDelta_TwoEntries(t *testing.T) {
	h := domain.FundingHistory{Symbol: "BTCUSDT"}
	h.Append(domain.Funding{Rate: decimal.NewFromFloat(0.01)})
	h.Append(domain.Funding{Rate: decimal.NewFromFloat(0.015)})

	assert.InDelta(t, 0.005, Delta(h), 0.0001)
}

func TestVelocity_ZeroOnNonPositiveInterval(t *testing.T) {
	now := time.Now()
	h := domain.FundingHistory{Symbol: "BTCUSDT"}
	h.Append(domain.Funding{Rate: decimal.NewFromFloat(0.01), Timestamp: now})
	h.Append(domain.Funding{Rate: decimal.NewFromFloat(0.02), Timestamp: now})

	assert.Equal(t, 0.0, Velocity(h))
}

func TestVelocity_PerSecond(t *testing.T) {
	base := time.Now()
	h := domain.FundingHistory{Symbol: "BTCUSDT"}
	h.Append(domain.Funding{Rate: decimal.NewFromFloat(0.01), Timestamp: base})
	h.Append(domain.Funding{Rate: decimal.NewFromFloat(0.02), Timestamp: base.Add(100 * time.Second)})

	assert.InDelta(t, 0.0001, Velocity(h), 0.00001)
}
