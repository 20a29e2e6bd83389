// Package models provides domain models for the alert and report engine.
package models

import (
	"time"
)

// QuoteSnapshot is a normalized point-in-time quote for one symbol.
// Volume and Amount are cumulative over the trading day, so Amount/Volume
// yields the running VWAP.
type QuoteSnapshot struct {
	Symbol    string
	Name      string
	Open      float64
	PreClose  float64
	Last      float64
	High      float64
	Low       float64
	Volume    float64 // shares
	Amount    float64 // yuan
	Timestamp time.Time
	Source    string
}

// VWAP returns the running volume-weighted average price, or false when
// no volume has traded yet (call-auction window, halted stock).
func (q QuoteSnapshot) VWAP() (float64, bool) {
	if q.Volume <= 0 {
		return 0, false
	}
	return q.Amount / q.Volume, true
}

// ChangePercent returns the change of Last vs PreClose in percent, or
// false when no previous close is available.
func (q QuoteSnapshot) ChangePercent() (float64, bool) {
	return Pct(q.Last, q.PreClose)
}

// Bar represents OHLCV data for one fixed interval.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64 // shares
	Amount    float64 // yuan
}

// BarSeries is a chronological sequence of bars for one trading day.
type BarSeries []Bar

// Within returns the bars whose time-of-day falls in [from, to], inclusive.
func (s BarSeries) Within(from, to TimeOfDay) BarSeries {
	var out BarSeries
	for _, b := range s {
		tod := TimeOfDayOf(b.Timestamp)
		if !tod.Before(from) && !to.Before(tod) {
			out = append(out, b)
		}
	}
	return out
}

// Last returns the final bar of the series, or false when empty.
func (s BarSeries) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Summary aggregates a bar series into a single OHLCV window.
type Summary struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Amount float64
}

// Summarize collapses the series into one OHLCV window, or false when
// the series is empty.
func (s BarSeries) Summarize() (Summary, bool) {
	if len(s) == 0 {
		return Summary{}, false
	}
	sum := Summary{
		Open: s[0].Open,
		High: s[0].High,
		Low:  s[0].Low,
	}
	for _, b := range s {
		if b.High > sum.High {
			sum.High = b.High
		}
		if b.Low < sum.Low {
			sum.Low = b.Low
		}
		sum.Volume += b.Volume
		sum.Amount += b.Amount
	}
	sum.Close = s[len(s)-1].Close
	return sum, true
}

// VWAP returns the volume-weighted average price of the window, or false
// when no volume traded.
func (s Summary) VWAP() (float64, bool) {
	if s.Volume <= 0 {
		return 0, false
	}
	return s.Amount / s.Volume, true
}

// FireEvent is one triggered alert, ready to hand to a delivery channel.
type FireEvent struct {
	RuleKey     string
	Symbol      string
	Message     string
	TriggeredAt time.Time
}

// AuctionSnapshot is a best-effort capture of the 09:25 call-auction match
// taken by a separate cron near the auction close. Advisory only; free
// endpoints do not guarantee the exact match price after the fact.
type AuctionSnapshot struct {
	Symbol     string
	Price      float64
	Amount     float64
	CapturedAt time.Time
}

// TimeOfDay is a minute-granularity wall-clock time within a trading day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// TimeOfDayOf extracts the time-of-day from a timestamp.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// Pct returns (a/b - 1) * 100, or false when b is zero.
func Pct(a, b float64) (float64, bool) {
	if b == 0 {
		return 0, false
	}
	return (a/b - 1.0) * 100.0, true
}
