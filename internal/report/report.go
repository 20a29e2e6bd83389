// Package report composes structured intraday trading reports from a
// day's bar series.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ashare-sentinel/internal/errors"
	"ashare-sentinel/internal/models"
	"ashare-sentinel/internal/session"
	"ashare-sentinel/pkg/utils"
)

// Mode selects which part of the session the report covers.
type Mode string

const (
	// ModeMidday covers bars up to the 11:30 morning close.
	ModeMidday Mode = "midday"
	// ModeClose covers the full session.
	ModeClose Mode = "close"
)

// Segment is one named section of the report with its derived statistics.
type Segment struct {
	Name      string
	HasData   bool
	Summary   models.Summary
	NetChange float64 // vs previous segment's close, percent
	HasChange bool
	Narrative string
}

// Report is the composed result. RenderText produces the plain-text
// rendering handed to the delivery collaborator.
type Report struct {
	Symbol    string
	Name      string
	Day       string
	Mode      Mode
	Partial   bool
	GapNote   string
	Segments  []Segment
	Generated time.Time
}

// Composer builds reports. Pure transformation; no network or delivery
// side effects.
type Composer struct {
	clock     *session.Clock
	precision int
	logger    zerolog.Logger

	// WatchLevels are custom price levels echoed in the key-levels
	// segment, typically the configured trigger levels.
	WatchLevels []float64
}

// NewComposer creates a composer. precision is the instrument's tick
// precision for price formatting.
func NewComposer(clock *session.Clock, precision int, logger zerolog.Logger) *Composer {
	if precision < 0 {
		precision = 2
	}
	return &Composer{clock: clock, precision: precision, logger: logger}
}

// Compose builds the report for one trading day. The auction snapshot is
// optional and advisory: when absent the opening segment is phrased as an
// open gap instead of claiming an exact auction match. indices are
// optional pre-fetched benchmark quotes for the market-background
// segment; the composer itself never fetches. When bars stop short of
// the requested window the report is marked partial rather than
// fabricating data; with no bars at all composition fails.
func (c *Composer) Compose(snap models.QuoteSnapshot, bars models.BarSeries, auction *models.AuctionSnapshot, indices []models.QuoteSnapshot, mode Mode, day time.Time) (*Report, error) {
	covered := bars
	if mode == ModeMidday {
		covered = bars.Within(models.TimeOfDay{Hour: 0}, models.TimeOfDay{Hour: 11, Minute: 30})
	}
	if len(covered) == 0 {
		return nil, errors.NewDataGapError(snap.Symbol, "no bars for requested window")
	}

	r := &Report{
		Symbol:    snap.Symbol,
		Name:      snap.Name,
		Day:       c.clock.TradingDayKey(day),
		Mode:      mode,
		Generated: time.Now().In(c.clock.Location()),
	}
	c.markGaps(r, covered, mode)

	opening := c.openingSegment(snap, auction)
	morning := c.windowSegment("Morning (9:30-11:30)", bars,
		models.TimeOfDay{Hour: 9, Minute: 30}, models.TimeOfDay{Hour: 11, Minute: 30}, snap.Open)
	c.appendSubRange(&morning, bars, "first 30m (9:30-10:00)",
		models.TimeOfDay{Hour: 9, Minute: 30}, models.TimeOfDay{Hour: 10})
	r.Segments = append(r.Segments, opening, morning)

	if mode == ModeClose {
		prevClose := snap.Open
		if morning.HasData {
			prevClose = morning.Summary.Close
		}
		afternoon := c.windowSegment("Afternoon (13:00-15:00)", bars,
			models.TimeOfDay{Hour: 13}, models.TimeOfDay{Hour: 15}, prevClose)
		if !afternoon.HasData {
			afternoon.Narrative = "no afternoon bars; statistics unavailable"
		}
		c.appendSubRange(&afternoon, bars, "last 30m (14:30-15:00)",
			models.TimeOfDay{Hour: 14, Minute: 30}, models.TimeOfDay{Hour: 15})
		r.Segments = append(r.Segments, afternoon)
	}

	r.Segments = append(r.Segments, c.summarySegment(snap, covered, mode))
	if market := c.marketSegment(indices); market.HasData {
		r.Segments = append(r.Segments, market)
	}
	r.Segments = append(r.Segments, c.keyLevelsSegment(covered))
	return r, nil
}

// appendSubRange adds a sub-window range line to a segment's narrative,
// e.g. the opening or closing half hour inside a session window.
func (c *Composer) appendSubRange(seg *Segment, bars models.BarSeries, label string, from, to models.TimeOfDay) {
	sum, ok := bars.Within(from, to).Summarize()
	if !ok || !seg.HasData {
		return
	}
	seg.Narrative += fmt.Sprintf("; %s %s ~ %s, closed %s",
		label,
		utils.FormatPrice(sum.Low, c.precision),
		utils.FormatPrice(sum.High, c.precision),
		utils.FormatPrice(sum.Close, c.precision))
}

// marketSegment summarizes benchmark index moves. Empty when no index
// quotes were supplied or none carries a usable change.
func (c *Composer) marketSegment(indices []models.QuoteSnapshot) Segment {
	seg := Segment{Name: "Market Background"}
	var parts []string
	for _, ix := range indices {
		ch, ok := ix.ChangePercent()
		if !ok {
			continue
		}
		name := ix.Name
		if name == "" {
			name = ix.Symbol
		}
		parts = append(parts, fmt.Sprintf("%s %s", name, utils.FormatSignedPercent(ch)))
	}
	if len(parts) == 0 {
		return seg
	}
	seg.HasData = true
	seg.Narrative = strings.Join(parts, "; ")
	return seg
}

// keyLevelsSegment lists the prices worth watching into the next session:
// the covered window's high as resistance, its low as support, the VWAP
// as the session's cost line, a whole-yuan mark when the range straddles
// one, and any configured watch levels.
func (c *Composer) keyLevelsSegment(covered models.BarSeries) Segment {
	seg := Segment{Name: "Key Levels"}
	sum, ok := covered.Summarize()
	if !ok {
		return seg
	}
	seg.HasData = true

	var sb strings.Builder
	fmt.Fprintf(&sb, "resistance %s", utils.FormatPrice(sum.High, c.precision))
	if vwap, vok := sum.VWAP(); vok {
		fmt.Fprintf(&sb, "; cost (VWAP) %.3f", vwap)
	}
	if mark, found := wholeYuanWithin(sum.Low, sum.High); found {
		fmt.Fprintf(&sb, "; round mark %s", utils.FormatPrice(mark, c.precision))
	}
	fmt.Fprintf(&sb, "; support %s", utils.FormatPrice(sum.Low, c.precision))
	if len(c.WatchLevels) > 0 {
		marks := make([]string, len(c.WatchLevels))
		for i, lv := range c.WatchLevels {
			marks[i] = fmt.Sprintf("%g", lv)
		}
		fmt.Fprintf(&sb, "; watch %s", strings.Join(marks, " / "))
	}
	seg.Narrative = sb.String()
	return seg
}

// wholeYuanWithin returns the lowest whole-yuan price inside [low, high],
// the mark traders anchor on when the day's range straddles one.
func wholeYuanWithin(low, high float64) (float64, bool) {
	mark := math.Ceil(low)
	if mark <= high {
		return mark, true
	}
	return 0, false
}

// markGaps marks the report partial when the covered bars stop more than
// one bar interval short of the requested window's end.
func (c *Composer) markGaps(r *Report, covered models.BarSeries, mode Mode) {
	expectedEnd := models.TimeOfDay{Hour: 11, Minute: 30}
	if mode == ModeClose {
		expectedEnd = models.TimeOfDay{Hour: 15}
	}
	last, _ := covered.Last()
	lastTod := models.TimeOfDayOf(last.Timestamp)
	if lastTod.Minutes() < expectedEnd.Minutes()-5 {
		r.Partial = true
		r.GapNote = fmt.Sprintf("bars end at %02d:%02d, before the %02d:%02d window close",
			lastTod.Hour, lastTod.Minute, expectedEnd.Hour, expectedEnd.Minute)
		c.logger.Warn().
			Str("symbol", r.Symbol).
			Str("note", r.GapNote).
			Msg("composing partial report")
	}
}

// openingSegment covers the call auction and open. Free endpoints do not
// reliably expose the 09:25 match after the fact, so an auction-derived
// gap is rendered as advisory text only; without a snapshot the segment
// speaks of the open gap and never claims an auction match.
func (c *Composer) openingSegment(snap models.QuoteSnapshot, auction *models.AuctionSnapshot) Segment {
	seg := Segment{Name: "Auction / Open", HasData: snap.Open > 0}
	seg.Summary = models.Summary{Open: snap.Open, High: snap.Open, Low: snap.Open, Close: snap.Open}

	gap, haveGap := models.Pct(snap.Open, snap.PreClose)
	if haveGap {
		seg.NetChange = gap
		seg.HasChange = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "prev close %s", utils.FormatPrice(snap.PreClose, c.precision))
	if auction != nil && auction.Price > 0 {
		apGap, apOk := models.Pct(auction.Price, snap.PreClose)
		fmt.Fprintf(&sb, "; auction snapshot (9:25, best-effort) %s vs prev close %s",
			utils.FormatPrice(auction.Price, c.precision), utils.FormatPercentPtr(apGap, apOk))
		if auction.Amount > 0 {
			fmt.Fprintf(&sb, ", turnover %s", utils.FormatAmount(auction.Amount))
		}
		fmt.Fprintf(&sb, "; open %s (gap %s)",
			utils.FormatPrice(snap.Open, c.precision), utils.FormatPercentPtr(gap, haveGap))
	} else {
		fmt.Fprintf(&sb, "; open %s (open gap %s; auction match not captured)",
			utils.FormatPrice(snap.Open, c.precision), utils.FormatPercentPtr(gap, haveGap))
	}
	seg.Narrative = sb.String()
	return seg
}

func (c *Composer) windowSegment(name string, bars models.BarSeries, from, to models.TimeOfDay, prevClose float64) Segment {
	seg := Segment{Name: name}
	sum, ok := bars.Within(from, to).Summarize()
	if !ok {
		return seg
	}
	seg.HasData = true
	seg.Summary = sum
	if ch, chOk := models.Pct(sum.Close, prevClose); chOk {
		seg.NetChange = ch
		seg.HasChange = true
	}
	seg.Narrative = fmt.Sprintf("range %s ~ %s, closed %s",
		utils.FormatPrice(sum.Low, c.precision),
		utils.FormatPrice(sum.High, c.precision),
		utils.FormatPrice(sum.Close, c.precision))
	return seg
}

func (c *Composer) summarySegment(snap models.QuoteSnapshot, covered models.BarSeries, mode Mode) Segment {
	seg := Segment{Name: "Summary"}
	sum, ok := covered.Summarize()
	if !ok {
		return seg
	}
	seg.HasData = true
	seg.Summary = sum

	ch, chOk := models.Pct(sum.Close, snap.PreClose)
	if chOk {
		seg.NetChange = ch
		seg.HasChange = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s at %s (%s, %s)",
		closeLabel(mode),
		utils.FormatPrice(sum.Close, c.precision),
		utils.FormatPercentPtr(ch, chOk),
		classify(sum, snap.PreClose))
	fmt.Fprintf(&sb, "; volume %s, turnover %s", utils.FormatVolume(sum.Volume), utils.FormatAmount(sum.Amount))
	if vwap, vok := sum.VWAP(); vok {
		rel := "at"
		if sum.Close > vwap {
			rel = "above"
		} else if sum.Close < vwap {
			rel = "below"
		}
		fmt.Fprintf(&sb, "; VWAP %.3f (close %s VWAP)", vwap, rel)
	}
	seg.Narrative = sb.String()
	return seg
}

func closeLabel(mode Mode) string {
	if mode == ModeMidday {
		return "midday (11:30)"
	}
	return "close (15:00)"
}

// classify labels the covered window's character, mirroring the usual
// strong/weak/rangebound reading of change vs preclose and intraday range.
func classify(sum models.Summary, preclose float64) string {
	ch, _ := models.Pct(sum.Close, preclose)
	rng, _ := models.Pct(sum.High, sum.Low)
	switch {
	case ch > -0.3 && ch < 0.3 && rng < 1.5:
		return "rangebound"
	case ch > 0.5:
		return "strong"
	case ch < -0.5:
		return "weak"
	case ch >= 0:
		return "rangebound, leaning strong"
	default:
		return "rangebound, leaning weak"
	}
}

// RenderText produces a plain-text rendering suitable for direct posting.
func (r *Report) RenderText() string {
	var sb strings.Builder

	title := "[Midday Report]"
	if r.Mode == ModeClose {
		title = "[Close Report]"
	}
	fmt.Fprintf(&sb, "%s %s", title, r.Day)
	if r.Partial {
		sb.WriteString(" (PARTIAL)")
	}
	sb.WriteByte('\n')

	subject := r.Symbol
	if r.Name != "" && r.Name != r.Symbol {
		subject = fmt.Sprintf("%s(%s)", r.Name, utils.ShortCode(r.Symbol))
	}
	fmt.Fprintf(&sb, "Symbol: %s\n", subject)
	if r.Partial {
		fmt.Fprintf(&sb, "Note: incomplete data: %s\n", r.GapNote)
	}

	for i, seg := range r.Segments {
		fmt.Fprintf(&sb, "\n%d) %s\n", i+1, seg.Name)
		if !seg.HasData {
			line := "- no data"
			if seg.Narrative != "" {
				line = "- " + seg.Narrative
			}
			sb.WriteString(line + "\n")
			continue
		}
		fmt.Fprintf(&sb, "- %s\n", seg.Narrative)
		if seg.HasChange {
			fmt.Fprintf(&sb, "- net change: %s\n", utils.FormatSignedPercent(seg.NetChange))
		}
	}

	sb.WriteString("\nData interpretation only; not investment advice.\n")
	return sb.String()
}
