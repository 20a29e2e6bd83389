package engine

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ashare-sentinel/internal/models"
	"ashare-sentinel/internal/rules"
	"ashare-sentinel/internal/session"
	"ashare-sentinel/internal/state"
)

const (
	testSymbol = "sh600158"
	testDay    = "2024-06-05"
)

func testEngine() *Engine {
	return New(2, zerolog.Nop())
}

func testStore(t *testing.T, dir string) *state.Store {
	t.Helper()
	st, err := state.Open(dir, testSymbol, testDay, state.DefaultOptions())
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	return st
}

func snapshot(last float64) models.QuoteSnapshot {
	return models.QuoteSnapshot{
		Symbol:    testSymbol,
		Name:      "中体产业",
		Open:      9.95,
		PreClose:  9.90,
		Last:      last,
		High:      last,
		Low:       9.80,
		Timestamp: time.Date(2024, 6, 5, 10, 15, 0, 0, time.UTC),
	}
}

// snapshotWithVolume carries cumulative amount/volume so the engine can
// derive a VWAP from the snapshot alone.
func snapshotWithVolume(last, vwap float64) models.QuoteSnapshot {
	s := snapshot(last)
	s.Volume = 1_000_000
	s.Amount = vwap * s.Volume
	return s
}

func ruleSet(t *testing.T, cfg rules.TriggerConfig) rules.Set {
	t.Helper()
	set, err := rules.Parse(cfg, rules.TriggerConfig{})
	if err != nil {
		t.Fatalf("rules.Parse: %v", err)
	}
	return set
}

func keys(events []models.FireEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.RuleKey
	}
	return out
}

func TestUpsideLevelFiresOnceAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{LevelsUp: []float64{10.00}})

	st := testStore(t, dir)
	events, err := eng.Evaluate(snapshot(10.01), models.BarSeries{}, set, session.WindowMorning, st)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 1 || events[0].RuleKey != "up:10.00" {
		t.Fatalf("events = %v, want single up:10.00", keys(events))
	}
	st.Close()

	// Same level touched again on a later invocation: nothing fires.
	st2 := testStore(t, dir)
	defer st2.Close()
	events, err = eng.Evaluate(snapshot(10.05), models.BarSeries{}, set, session.WindowMorning, st2)
	if err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("re-fired already fired level: %v", keys(events))
	}
}

func TestMonotonicRiseFiresEachLevelOnce(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{LevelsUp: []float64{10.00, 10.03}})

	ticks := []struct {
		last float64
		want []string
	}{
		{9.98, nil},
		{10.01, []string{"up:10.00"}},
		{10.05, []string{"up:10.03"}},
		{10.05, nil},
	}
	for _, tick := range ticks {
		st := testStore(t, dir)
		events, err := eng.Evaluate(snapshot(tick.last), models.BarSeries{}, set, session.WindowMorning, st)
		st.Close()
		if err != nil {
			t.Fatalf("Evaluate at %.2f: %v", tick.last, err)
		}
		got := keys(events)
		if len(got) != len(tick.want) {
			t.Fatalf("at %.2f: events = %v, want %v", tick.last, got, tick.want)
		}
		for i := range got {
			if got[i] != tick.want[i] {
				t.Errorf("at %.2f: events = %v, want %v", tick.last, got, tick.want)
			}
		}
	}
}

func TestGapUpFiresAllCrossedLevelsAscending(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{LevelsUp: []float64{10.00, 10.03, 10.10}})

	st := testStore(t, dir)
	defer st.Close()
	events, err := eng.Evaluate(snapshot(10.07), models.BarSeries{}, set, session.WindowMorning, st)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := keys(events)
	want := []string{"up:10.00", "up:10.03"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestDownsideBreakFiresOnce(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{Breakdown: 9.86})

	st := testStore(t, dir)
	events, err := eng.Evaluate(snapshot(9.85), models.BarSeries{}, set, session.WindowAfternoon, st)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 1 || events[0].RuleKey != "down:9.86" {
		t.Fatalf("events = %v, want single down:9.86", keys(events))
	}
	if !strings.Contains(events[0].Message, "broke below") {
		t.Errorf("message %q lacks break wording", events[0].Message)
	}
	st.Close()

	st2 := testStore(t, dir)
	defer st2.Close()
	events, err = eng.Evaluate(snapshot(9.80), models.BarSeries{}, set, session.WindowAfternoon, st2)
	if err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("re-fired downside break: %v", keys(events))
	}
}

func TestNonTradedWindowSkipsEvaluation(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{LevelsUp: []float64{10.00}})

	for _, w := range []session.Window{session.WindowPreMarket, session.WindowMiddayBreak, session.WindowClosed} {
		st := testStore(t, dir)
		events, err := eng.Evaluate(snapshot(10.50), models.BarSeries{}, set, w, st)
		st.Close()
		if err != nil {
			t.Fatalf("Evaluate in %v: %v", w, err)
		}
		if len(events) != 0 {
			t.Errorf("fired in %v window: %v", w, keys(events))
		}
	}

	// The skipped invocations must not have touched durable state: no
	// fired record and no state file written at all.
	st := testStore(t, dir)
	defer st.Close()
	if st.HasFired("up:10.00") {
		t.Error("non-traded invocation wrote fired state")
	}
	if _, err := os.Stat(st.Path()); !os.IsNotExist(err) {
		t.Error("non-traded invocation created a state file")
	}
}

func TestVwapCrossNeedsBaseline(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{VwapCross: boolPtr(true)})

	// First tick of the day: above VWAP, no baseline yet. Sets the
	// baseline without firing.
	st := testStore(t, dir)
	events, err := eng.Evaluate(snapshotWithVolume(10.10, 10.00), models.BarSeries{}, set, session.WindowMorning, st)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("fired a cross with no baseline: %v", keys(events))
	}
	if st.VwapRelation() != state.RelationAbove {
		t.Fatalf("baseline = %q, want above", st.VwapRelation())
	}
	st.Close()

	// Price drops through VWAP: that is a real cross.
	st2 := testStore(t, dir)
	events, err = eng.Evaluate(snapshotWithVolume(9.90, 10.00), models.BarSeries{}, set, session.WindowMorning, st2)
	if err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	if len(events) != 1 || events[0].RuleKey != "vwap" {
		t.Fatalf("events = %v, want single vwap cross", keys(events))
	}
	if !strings.Contains(events[0].Message, "crossed below") {
		t.Errorf("message %q lacks cross direction", events[0].Message)
	}
	st2.Close()

	// A cross back does not fire again; the key is once per day. The
	// baseline still tracks the new side.
	st3 := testStore(t, dir)
	defer st3.Close()
	events, err = eng.Evaluate(snapshotWithVolume(10.20, 10.00), models.BarSeries{}, set, session.WindowMorning, st3)
	if err != nil {
		t.Fatalf("third Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("vwap cross fired twice in one day: %v", keys(events))
	}
	if st3.VwapRelation() != state.RelationAbove {
		t.Errorf("baseline after re-cross = %q, want above", st3.VwapRelation())
	}
}

func TestVwapCrossSkipsWhenNoVolume(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{VwapCross: boolPtr(true)})

	st := testStore(t, dir)
	defer st.Close()
	// No snapshot volume and no bars: VWAP is undefined.
	events, err := eng.Evaluate(snapshot(10.10), models.BarSeries{}, set, session.WindowMorning, st)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("fired without VWAP data: %v", keys(events))
	}
	if st.VwapRelation() != state.RelationUnknown {
		t.Errorf("baseline set without VWAP data: %q", st.VwapRelation())
	}
}

func TestVwapFallsBackToBars(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{VwapCross: boolPtr(true)})

	bars := models.BarSeries{
		{Timestamp: time.Date(2024, 6, 5, 9, 35, 0, 0, time.UTC), Open: 9.95, High: 10.05, Low: 9.90, Close: 10.00, Volume: 500_000, Amount: 5_000_000},
	}

	st := testStore(t, dir)
	defer st.Close()
	// Snapshot has no volume; the bar aggregate gives VWAP 10.00 and the
	// tick at 10.10 sits above it, so the baseline gets set.
	_, err := eng.Evaluate(snapshot(10.10), bars, set, session.WindowMorning, st)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if st.VwapRelation() != state.RelationAbove {
		t.Errorf("baseline = %q, want above from bar-derived VWAP", st.VwapRelation())
	}
}

func TestAuctionWindowFiresAreMarkedIndicative(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{LevelsUp: []float64{10.00}, Breakdown: 9.86})

	st := testStore(t, dir)
	events, err := eng.Evaluate(snapshot(10.01), models.BarSeries{}, set, session.WindowCallAuction, st)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %v, want single up:10.00", keys(events))
	}
	if !strings.Contains(events[0].Message, "call auction, indicative") {
		t.Errorf("auction-window message %q lacks indicative marker", events[0].Message)
	}
	st.Close()

	// The same touch during continuous trading has no such marker.
	st2 := testStore(t, dir)
	defer st2.Close()
	events, err = eng.Evaluate(snapshot(9.85), models.BarSeries{}, set, session.WindowMorning, st2)
	if err != nil {
		t.Fatalf("morning Evaluate: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %v, want single down:9.86", keys(events))
	}
	if strings.Contains(events[0].Message, "indicative") {
		t.Errorf("continuous-trading message %q carries the auction marker", events[0].Message)
	}
}

func TestUpsideMessageContainsContext(t *testing.T) {
	dir := t.TempDir()
	eng := testEngine()
	set := ruleSet(t, rules.TriggerConfig{LevelsUp: []float64{10.00}})

	st := testStore(t, dir)
	defer st.Close()
	events, err := eng.Evaluate(snapshotWithVolume(10.03, 9.98), models.BarSeries{}, set, session.WindowMorning, st)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %v", keys(events))
	}
	msg := events[0].Message
	for _, part := range []string{"中体产业(600158)", "touched 10.00", "last 10.03", "VWAP"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q missing %q", msg, part)
		}
	}
}

func boolPtr(b bool) *bool { return &b }
