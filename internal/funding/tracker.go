// Package funding derives delta and velocity views over the bounded
// funding history the Market State Store maintains.
package funding

import "github.com/dynastyq/funding-signal-pipeline/internal/domain"

// Delta returns latest minus previous funding rate (percent), or 0 if the
// history has fewer than two entries.
func Delta(history domain.FundingHistory) float64 {
	latest, ok := history.Latest()
	if !ok {
		return 0
	}
	previous, ok := history.Previous()
	if !ok {
		return 0
	}
	latestRate, _ := latest.Rate.Float64()
	previousRate, _ := previous.Rate.Float64()
	return latestRate - previousRate
}

// Velocity returns delta per second between the latest two funding
// observations, or 0 if the history has fewer than two entries or the time
// delta is non-positive.
func Velocity(history domain.FundingHistory) float64 {
	latest, ok := history.Latest()
	if !ok {
		return 0
	}
	previous, ok := history.Previous()
	if !ok {
		return 0
	}

	seconds := latest.Timestamp.Sub(previous.Timestamp).Seconds()
	if seconds <= 0 {
		return 0
	}

	return Delta(history) / seconds
}
