// Package session classifies timestamps into A-share trading-session
// windows and trading-day identity.
package session

import (
	"time"
)

// Window represents a phase of the trading day.
type Window string

const (
	WindowPreMarket   Window = "PRE_MARKET"
	WindowCallAuction Window = "CALL_AUCTION"
	WindowMorning     Window = "MORNING"
	WindowMiddayBreak Window = "MIDDAY_BREAK"
	WindowAfternoon   Window = "AFTERNOON"
	WindowClosed      Window = "CLOSED"
)

// String returns a human-readable description of the window.
func (w Window) String() string {
	switch w {
	case WindowPreMarket:
		return "Pre-Market"
	case WindowCallAuction:
		return "Call Auction (9:15-9:25)"
	case WindowMorning:
		return "Morning Session (9:30-11:30)"
	case WindowMiddayBreak:
		return "Midday Break (11:30-13:00)"
	case WindowAfternoon:
		return "Afternoon Session (13:00-15:00)"
	case WindowClosed:
		return "Closed"
	default:
		return string(w)
	}
}

// Traded reports whether alerts may fire in this window. The call auction
// is included on a best-effort basis; quotes there carry indicative prices.
func (w Window) Traded() bool {
	switch w {
	case WindowCallAuction, WindowMorning, WindowAfternoon:
		return true
	default:
		return false
	}
}

// Calendar reports whether a given date is a trading day. Weekends are
// handled by the Clock itself; the calendar only needs to know holidays.
type Calendar func(date time.Time) bool

// Clock classifies timestamps against the exchange's local time.
type Clock struct {
	location *time.Location
	calendar Calendar
}

// NewClock creates a clock for the Shanghai/Shenzhen exchanges.
// A nil calendar treats every weekday as a trading day.
func NewClock(calendar Calendar) *Clock {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*60*60)
	}
	return &Clock{location: loc, calendar: calendar}
}

// Location returns the exchange's local time zone.
func (c *Clock) Location() *time.Location {
	return c.location
}

// IsTradingDay reports whether t falls on a trading day.
func (c *Clock) IsTradingDay(t time.Time) bool {
	t = t.In(c.location)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	if c.calendar != nil && !c.calendar(t) {
		return false
	}
	return true
}

// TradingDayKey returns the calendar date of t in exchange-local time,
// used to key per-day state.
func (c *Clock) TradingDayKey(t time.Time) string {
	return t.In(c.location).Format("2006-01-02")
}

// Classify returns the session window containing t. Non-trading days
// classify as Closed regardless of time-of-day.
func (c *Clock) Classify(t time.Time) Window {
	if !c.IsTradingDay(t) {
		return WindowClosed
	}

	t = t.In(c.location)
	timeMinutes := t.Hour()*60 + t.Minute()

	// Window boundaries (minutes from midnight)
	auctionStart := 9*60 + 15  // 9:15
	auctionEnd := 9*60 + 25    // 9:25
	morningStart := 9*60 + 30  // 9:30
	morningEnd := 11*60 + 30   // 11:30
	afternoonStart := 13 * 60  // 13:00
	afternoonEnd := 15 * 60    // 15:00

	switch {
	case timeMinutes < auctionStart:
		return WindowPreMarket
	case timeMinutes < auctionEnd:
		return WindowCallAuction
	case timeMinutes < morningStart:
		// 9:25-9:30 gap between auction match and continuous trading
		return WindowPreMarket
	case timeMinutes <= morningEnd:
		return WindowMorning
	case timeMinutes < afternoonStart:
		return WindowMiddayBreak
	case timeMinutes <= afternoonEnd:
		return WindowAfternoon
	default:
		return WindowClosed
	}
}

// MorningEnd returns 11:30 on the trading day of t.
func (c *Clock) MorningEnd(t time.Time) time.Time {
	return c.at(t, 11, 30)
}

// SessionClose returns 15:00 on the trading day of t.
func (c *Clock) SessionClose(t time.Time) time.Time {
	return c.at(t, 15, 0)
}

func (c *Clock) at(t time.Time, hour, minute int) time.Time {
	t = t.In(c.location)
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, c.location)
}
