package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestScore_StrongSignalMeetsThreshold(t *testing.T) {
	f := Factors{
		FundingRate:   0.045,
		FundingDelta:  floatPtr(0.012),
		RSI:           floatPtr(75),
		Momentum:      floatPtr(2.5),
		HasVolume:     true,
		BTCFundingAbs: floatPtr(0.025),
	}
	result := Score(f, 75)
	assert.GreaterOrEqual(t, result.Score, 75.0)
	assert.True(t, result.MeetsThreshold)
}

func TestScore_WeakSignalBelowThreshold(t *testing.T) {
	f := Factors{
		FundingRate: 0.001,
		RSI:         floatPtr(50),
		Momentum:    floatPtr(0.1),
	}
	result := Score(f, 75)
	assert.Less(t, result.Score, 75.0)
	assert.False(t, result.MeetsThreshold)
}

func TestScore_NilOptionalFactorsDefaultToMidpoint(t *testing.T) {
	f := Factors{FundingRate: 0.03}
	result := Score(f, 0)
	// 90*40 for funding, then 50 for each nil/absent factor:
	// (3600 + 50*20 + 50*20 + 50*10 + 50*10) / 100 = 66.
	assert.Equal(t, 66.0, result.Score)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 100.0)
}

func TestScore_NeverExceedsHundred(t *testing.T) {
	f := Factors{
		FundingRate:   0.1,
		FundingDelta:  floatPtr(0.05),
		RSI:           floatPtr(80),
		Momentum:      floatPtr(5),
		HasVolume:     true,
		BTCFundingAbs: floatPtr(0.05),
	}
	result := Score(f, 0)
	assert.LessOrEqual(t, result.Score, 100.0)
}

func TestFundingExtremityScore_Brackets(t *testing.T) {
	assert.Equal(t, 100.0, fundingExtremityScore(0.04))
	assert.Equal(t, 90.0, fundingExtremityScore(0.035))
	assert.Equal(t, 0.0, fundingExtremityScore(0.001))
}

func TestRSIMomentumScore_AlignedExtreme(t *testing.T) {
	rsi, momentum := 75.0, 1.0
	assert.Equal(t, 100.0, rsiMomentumScore(&rsi, &momentum))
}

func TestRSIMomentumScore_MissingInputsDefaultsToMidpoint(t *testing.T) {
	assert.Equal(t, 50.0, rsiMomentumScore(nil, nil))
}
