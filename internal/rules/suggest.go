package rules

import (
	"math"
	"sort"

	"ashare-sentinel/internal/errors"
	"ashare-sentinel/internal/models"
)

// Suggestion is a trigger proposal derived from recent daily bars,
// ready to paste into the config file's [triggers] table.
type Suggestion struct {
	Triggers   TriggerConfig
	LastClose  float64
	RecentHigh float64
	RecentLow  float64
}

// Suggest derives trigger levels from daily bars, newest last: the next
// round-number mark above the latest close and the lookbackUp-day high
// as upside levels, the lookbackDown-day low as the breakdown level.
// The VWAP cross is always proposed on. A few days of history is the
// floor; highs and lows off two bars are noise, not levels.
func Suggest(daily models.BarSeries, lookbackUp, lookbackDown int) (Suggestion, error) {
	if len(daily) < 5 {
		return Suggestion{}, errors.Wrapf(errors.ErrNoData, "need at least 5 daily bars, have %d", len(daily))
	}
	if lookbackUp <= 0 {
		lookbackUp = 20
	}
	if lookbackDown <= 0 {
		lookbackDown = 5
	}

	last := daily[len(daily)-1]
	high := windowHigh(daily, lookbackUp)
	low := windowLow(daily, lookbackDown)

	levels := []float64{nextRoundAbove(last.Close)}
	// A lookback high at or under the close would fire on the next tick.
	if high > last.Close {
		levels = append(levels, round2(high))
	}
	sort.Float64s(levels)
	levels = uniqFloats(levels)

	on := true
	return Suggestion{
		Triggers: TriggerConfig{
			LevelsUp:  levels,
			Breakdown: round2(low),
			VwapCross: &on,
		},
		LastClose:  last.Close,
		RecentHigh: high,
		RecentLow:  low,
	}, nil
}

// roundStep picks the round-number granularity traders anchor on at a
// given price magnitude.
func roundStep(price float64) float64 {
	switch {
	case price < 10:
		return 0.1
	case price < 50:
		return 0.5
	case price < 200:
		return 1.0
	default:
		return 5.0
	}
}

// nextRoundAbove returns the first round mark strictly above price.
func nextRoundAbove(price float64) float64 {
	step := roundStep(price)
	mark := math.Ceil(price/step) * step
	if mark <= price+1e-9 {
		mark += step
	}
	return round2(mark)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// windowHigh returns the highest high over the trailing n bars.
func windowHigh(daily models.BarSeries, n int) float64 {
	start := len(daily) - n
	if start < 0 {
		start = 0
	}
	high := daily[start].High
	for _, b := range daily[start+1:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

// windowLow returns the lowest low over the trailing n bars.
func windowLow(daily models.BarSeries, n int) float64 {
	start := len(daily) - n
	if start < 0 {
		start = 0
	}
	low := daily[start].Low
	for _, b := range daily[start+1:] {
		if b.Low > 0 && (low <= 0 || b.Low < low) {
			low = b.Low
		}
	}
	return low
}

func uniqFloats(in []float64) []float64 {
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}
