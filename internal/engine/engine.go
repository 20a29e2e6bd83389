// Package engine decides which configured triggers fire for one quote
// tick and records each firing in the durable per-day state.
package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ashare-sentinel/internal/logging"
	"ashare-sentinel/internal/models"
	"ashare-sentinel/internal/rules"
	"ashare-sentinel/internal/session"
	"ashare-sentinel/internal/state"
	"ashare-sentinel/pkg/utils"
)

// Engine evaluates trigger rules against quote snapshots. It holds no
// mutable state of its own; everything that must survive an invocation
// lives in the state store.
type Engine struct {
	precision int
	logger    zerolog.Logger
}

// New creates an engine. precision is the instrument's tick precision
// used in message formatting.
func New(precision int, logger zerolog.Logger) *Engine {
	if precision < 0 {
		precision = 2
	}
	return &Engine{precision: precision, logger: logger}
}

// Evaluate runs one tick of trigger evaluation. It is idempotent: a rule
// already recorded as fired today never produces a second event, no matter
// how often the scheduler re-invokes with the same or later snapshots.
//
// Each event is recorded in the store before it is returned, so every
// returned event is consistent with persisted state. If a state write
// fails mid-batch, the events recorded so far are returned together with
// the error; the remaining rules are not evaluated.
func (e *Engine) Evaluate(snap models.QuoteSnapshot, bars models.BarSeries, set rules.Set, window session.Window, store *state.Store) ([]models.FireEvent, error) {
	if !window.Traded() {
		e.logger.Debug().
			Str("symbol", snap.Symbol).
			Stringer("window", window).
			Msg("outside traded windows, skipping evaluation")
		return nil, nil
	}

	vwap, haveVwap := e.vwap(snap, bars)

	// Auction-window quotes are indicative match prices, not continuous
	// trades; every message from this window says so.
	note := ""
	if window == session.WindowCallAuction {
		note = " | call auction, indicative"
	}

	var events []models.FireEvent

	// Upside levels, ascending: a tick that jumps several levels fires
	// them all in one evaluation.
	for _, r := range set.UpsideLevels {
		if snap.Last < r.Level || store.HasFired(r.Key()) {
			continue
		}
		ev := e.fireEvent(snap, r.Key(), e.upsideMessage(snap, r.Level, vwap, haveVwap)+note)
		if err := store.RecordFire(ev.RuleKey, ev.TriggeredAt); err != nil {
			return events, err
		}
		events = append(events, ev)
	}

	if r := set.DownsideBreak; r != nil && snap.Last <= r.Level && !store.HasFired(r.Key()) {
		ev := e.fireEvent(snap, r.Key(), e.downsideMessage(snap, r.Level, vwap, haveVwap)+note)
		if err := store.RecordFire(ev.RuleKey, ev.TriggeredAt); err != nil {
			return events, err
		}
		events = append(events, ev)
	}

	if set.VwapCross {
		ev, fired, err := e.evaluateVwapCross(snap, vwap, haveVwap, note, store)
		if err != nil {
			return events, err
		}
		if fired {
			events = append(events, ev)
		}
	}

	return events, nil
}

// evaluateVwapCross compares the tick's relation to VWAP against the
// persisted baseline. Without a baseline (first tick of the day, restart
// mid-session) the current relation becomes the new baseline and nothing
// fires; a cross is never manufactured from missing history.
func (e *Engine) evaluateVwapCross(snap models.QuoteSnapshot, vwap float64, haveVwap bool, note string, store *state.Store) (models.FireEvent, bool, error) {
	if !haveVwap {
		// No volume yet (call auction, halted): no data, no cross.
		return models.FireEvent{}, false, nil
	}

	var rel state.VwapRelation
	switch {
	case snap.Last > vwap:
		rel = state.RelationAbove
	case snap.Last < vwap:
		rel = state.RelationBelow
	default:
		// Sitting exactly on VWAP decides nothing; keep the baseline.
		return models.FireEvent{}, false, nil
	}

	prev := store.VwapRelation()
	if prev == state.RelationUnknown {
		return models.FireEvent{}, false, store.SetVwapRelation(rel)
	}
	if prev == rel {
		return models.FireEvent{}, false, nil
	}

	key := rules.Rule{Kind: rules.KindVwapCross}.Key()
	if store.HasFired(key) {
		return models.FireEvent{}, false, store.SetVwapRelation(rel)
	}

	ev := e.fireEvent(snap, key, e.vwapCrossMessage(snap, vwap, rel)+note)
	if err := store.RecordFire(ev.RuleKey, ev.TriggeredAt); err != nil {
		return models.FireEvent{}, false, err
	}
	if err := store.SetVwapRelation(rel); err != nil {
		// The fire itself is durable; report the baseline write failure.
		return ev, true, err
	}
	return ev, true, nil
}

// vwap prefers the snapshot's cumulative amount/volume and falls back to
// aggregating the intraday bars when the snapshot carries no volume.
func (e *Engine) vwap(snap models.QuoteSnapshot, bars models.BarSeries) (float64, bool) {
	if v, ok := snap.VWAP(); ok {
		return v, true
	}
	if sum, ok := bars.Summarize(); ok {
		return sum.VWAP()
	}
	return 0, false
}

func (e *Engine) fireEvent(snap models.QuoteSnapshot, key, message string) models.FireEvent {
	at := snap.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	logging.LogFire(e.logger, snap.Symbol, key, snap.Last)
	return models.FireEvent{
		RuleKey:     key,
		Symbol:      snap.Symbol,
		Message:     message,
		TriggeredAt: at,
	}
}

func (e *Engine) upsideMessage(snap models.QuoteSnapshot, level, vwap float64, haveVwap bool) string {
	return fmt.Sprintf("%s touched %s | last %s (%s)%s",
		e.subject(snap),
		utils.FormatPrice(level, e.precision),
		utils.FormatPrice(snap.Last, e.precision),
		e.changeText(snap),
		e.vwapText(snap, vwap, haveVwap),
	)
}

func (e *Engine) downsideMessage(snap models.QuoteSnapshot, level, vwap float64, haveVwap bool) string {
	return fmt.Sprintf("%s broke below %s | last %s (%s)%s",
		e.subject(snap),
		utils.FormatPrice(level, e.precision),
		utils.FormatPrice(snap.Last, e.precision),
		e.changeText(snap),
		e.vwapText(snap, vwap, haveVwap),
	)
}

func (e *Engine) vwapCrossMessage(snap models.QuoteSnapshot, vwap float64, rel state.VwapRelation) string {
	direction := "crossed above"
	if rel == state.RelationBelow {
		direction = "crossed below"
	}
	return fmt.Sprintf("%s %s VWAP %.3f | last %s (%s)",
		e.subject(snap),
		direction,
		vwap,
		utils.FormatPrice(snap.Last, e.precision),
		e.changeText(snap),
	)
}

func (e *Engine) subject(snap models.QuoteSnapshot) string {
	if snap.Name != "" && snap.Name != snap.Symbol {
		return fmt.Sprintf("%s(%s)", snap.Name, utils.ShortCode(snap.Symbol))
	}
	return snap.Symbol
}

func (e *Engine) changeText(snap models.QuoteSnapshot) string {
	ch, ok := snap.ChangePercent()
	return utils.FormatPercentPtr(ch, ok)
}

func (e *Engine) vwapText(snap models.QuoteSnapshot, vwap float64, haveVwap bool) string {
	if !haveVwap {
		return ""
	}
	side := "at"
	if snap.Last > vwap {
		side = "above"
	} else if snap.Last < vwap {
		side = "below"
	}
	return fmt.Sprintf(" | %s VWAP %.3f", side, vwap)
}
