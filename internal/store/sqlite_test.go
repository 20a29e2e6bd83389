package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ashare-sentinel/internal/models"
)

func testJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestLogFireAndGetFires(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	events := []models.FireEvent{
		{RuleKey: "up:10.00", Symbol: "sh600158", Message: "touched 10.00", TriggeredAt: time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)},
		{RuleKey: "down:9.86", Symbol: "sh600158", Message: "broke below 9.86", TriggeredAt: time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC)},
	}
	for _, ev := range events {
		if err := j.LogFire(ctx, ev, "2024-06-05"); err != nil {
			t.Fatalf("LogFire: %v", err)
		}
	}

	got, err := j.GetFires(ctx, FireFilter{Symbol: "sh600158", TradingDay: "2024-06-05"})
	if err != nil {
		t.Fatalf("GetFires: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].RuleKey != "down:9.86" || got[1].RuleKey != "up:10.00" {
		t.Errorf("order = %s, %s", got[0].RuleKey, got[1].RuleKey)
	}
}

func TestLogFireIgnoresDuplicates(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	ev := models.FireEvent{RuleKey: "vwap", Symbol: "sh600158", Message: "crossed above VWAP", TriggeredAt: time.Now()}
	if err := j.LogFire(ctx, ev, "2024-06-05"); err != nil {
		t.Fatalf("LogFire: %v", err)
	}
	if err := j.LogFire(ctx, ev, "2024-06-05"); err != nil {
		t.Fatalf("duplicate LogFire: %v", err)
	}

	got, err := j.GetFires(ctx, FireFilter{TradingDay: "2024-06-05"})
	if err != nil {
		t.Fatalf("GetFires: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d records after duplicate log, want 1", len(got))
	}
}

func TestGetFiresLimit(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	for i, key := range []string{"up:10.00", "up:10.03", "down:9.86"} {
		ev := models.FireEvent{RuleKey: key, Symbol: "sh600158", Message: key, TriggeredAt: base.Add(time.Duration(i) * time.Minute)}
		if err := j.LogFire(ctx, ev, "2024-06-05"); err != nil {
			t.Fatalf("LogFire: %v", err)
		}
	}

	got, err := j.GetFires(ctx, FireFilter{Limit: 2})
	if err != nil {
		t.Fatalf("GetFires: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want limit of 2", len(got))
	}
}

func TestLogReportRoundTrip(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	rec := ReportRecord{
		Symbol:     "sh600158",
		TradingDay: "2024-06-05",
		Mode:       "close",
		Partial:    true,
		Text:       "[Close Report] 2024-06-05 (PARTIAL)\n...",
		ComposedAt: time.Date(2024, 6, 5, 15, 5, 0, 0, time.UTC),
	}
	if err := j.LogReport(ctx, rec); err != nil {
		t.Fatalf("LogReport: %v", err)
	}

	got, err := j.GetReports(ctx, "sh600158", 5)
	if err != nil {
		t.Fatalf("GetReports: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d reports, want 1", len(got))
	}
	r := got[0]
	if r.Mode != "close" || !r.Partial || r.TradingDay != "2024-06-05" {
		t.Errorf("report = %+v", r)
	}
	if r.Text != rec.Text {
		t.Errorf("body mismatch: %q", r.Text)
	}
}
