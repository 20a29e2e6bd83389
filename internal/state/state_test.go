package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "ashare-sentinel/internal/errors"
)

const (
	testSymbol = "sh600158"
	testDay    = "2024-06-05"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	st, err := Open(dir, testSymbol, testDay, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestRecordFireRoundTrip(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 6, 5, 10, 31, 0, 0, time.UTC)

	st := openTestStore(t, dir)
	if st.HasFired("up:10.00") {
		t.Fatal("fresh store reports fired")
	}
	if err := st.RecordFire("up:10.00", at); err != nil {
		t.Fatalf("RecordFire: %v", err)
	}
	if !st.HasFired("up:10.00") {
		t.Fatal("HasFired false after RecordFire")
	}
	st.Close()

	// A new invocation sees the persisted record.
	st2 := openTestStore(t, dir)
	defer st2.Close()
	if !st2.HasFired("up:10.00") {
		t.Error("fire not visible after reopen")
	}
	firedAt, ok := st2.FiredAt("up:10.00")
	if !ok || !firedAt.Equal(at) {
		t.Errorf("FiredAt = %v, %v; want %v, true", firedAt, ok, at)
	}
}

func TestRecordFireIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	defer st.Close()

	first := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	if err := st.RecordFire("down:9.86", first); err != nil {
		t.Fatalf("RecordFire: %v", err)
	}
	if err := st.RecordFire("down:9.86", first.Add(time.Minute)); err != nil {
		t.Fatalf("repeat RecordFire: %v", err)
	}
	at, _ := st.FiredAt("down:9.86")
	if !at.Equal(first) {
		t.Errorf("repeat RecordFire overwrote timestamp: %v", at)
	}
}

func TestVwapRelationPersists(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	if st.VwapRelation() != RelationUnknown {
		t.Fatal("fresh store has a VWAP relation")
	}
	if err := st.SetVwapRelation(RelationAbove); err != nil {
		t.Fatalf("SetVwapRelation: %v", err)
	}
	st.Close()

	st2 := openTestStore(t, dir)
	defer st2.Close()
	if st2.VwapRelation() != RelationAbove {
		t.Errorf("VwapRelation after reopen = %q, want above", st2.VwapRelation())
	}
}

func TestCorruptStateTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, testDay+"_"+testSymbol+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := openTestStore(t, dir)
	defer st.Close()
	if !st.Corrupt() {
		t.Error("Corrupt() = false for unparseable file")
	}
	if st.HasFired("up:10.00") {
		t.Error("corrupt store reports fired rules")
	}
}

func TestAtomicSaveLeavesCommittedStateIntact(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	if err := st.RecordFire("up:10.00", time.Now()); err != nil {
		t.Fatalf("RecordFire: %v", err)
	}
	st.Close()

	committed, err := os.ReadFile(filepath.Join(dir, testDay+"_"+testSymbol+".json"))
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a process killed mid-write: a half-written temp file is
	// left behind but the committed file was never touched in place.
	tmpPath := filepath.Join(dir, "."+testDay+"_"+testSymbol+".json.tmp-123")
	if err := os.WriteFile(tmpPath, []byte(`{"date": "2024-06`), 0o644); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(filepath.Join(dir, testDay+"_"+testSymbol+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(committed) {
		t.Error("committed state changed by abandoned temp file")
	}

	st2 := openTestStore(t, dir)
	defer st2.Close()
	if !st2.HasFired("up:10.00") {
		t.Error("committed fire lost after simulated crash")
	}
}

func TestStateFileIsHumanInspectable(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	if err := st.RecordFire("vwap", time.Now()); err != nil {
		t.Fatalf("RecordFire: %v", err)
	}
	st.Close()

	data, err := os.ReadFile(filepath.Join(dir, testDay+"_"+testSymbol+".json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	if doc["date"] != testDay {
		t.Errorf("date field = %v, want %s", doc["date"], testDay)
	}
	if _, ok := doc["fired"].(map[string]interface{}); !ok {
		t.Error("fired field missing or wrong shape")
	}
}

func TestLockTimeout(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	defer st.Close()

	opts := Options{LockTimeout: 200 * time.Millisecond, LockStale: time.Hour}
	start := time.Now()
	_, err := Open(dir, testSymbol, testDay, opts)
	if err == nil {
		t.Fatal("second Open succeeded while lock held")
	}
	if !apperrors.Is(err, apperrors.ErrLockTimeout) {
		t.Errorf("error = %v, want ErrLockTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("lock wait took %v, want bounded by ~200ms", elapsed)
	}
}

func TestStaleLockIsBroken(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, testDay+"_"+testSymbol+".lock")
	if err := os.WriteFile(lockPath, []byte("999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	st, err := Open(dir, testSymbol, testDay, Options{LockTimeout: 500 * time.Millisecond, LockStale: 2 * time.Minute})
	if err != nil {
		t.Fatalf("Open did not break stale lock: %v", err)
	}
	st.Close()
}

func TestStaleLockBreakLeavesNoResidue(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, testDay+"_"+testSymbol+".lock")
	if err := os.WriteFile(lockPath, []byte("999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	st, err := Open(dir, testSymbol, testDay, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	st.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".lock") {
			t.Errorf("leftover lock artifact %q after break and release", e.Name())
		}
	}
}

func TestFreshLockSurvivesBreakAttempt(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, testDay+"_"+testSymbol+".lock")
	content := []byte("424242 holder\n")
	if err := os.WriteFile(lockPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// The holder's lock is seconds old; the newcomer must time out
	// without touching it.
	opts := Options{LockTimeout: 200 * time.Millisecond, LockStale: time.Hour}
	if _, err := Open(dir, testSymbol, testDay, opts); err == nil {
		t.Fatal("Open succeeded against a held fresh lock")
	}

	after, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("fresh lock removed by losing contender: %v", err)
	}
	if string(after) != string(content) {
		t.Errorf("fresh lock content changed: %q", after)
	}
}

func TestDifferentDaysAreIndependent(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, dir)
	if err := st.RecordFire("up:10.00", time.Now()); err != nil {
		t.Fatal(err)
	}
	st.Close()

	next, err := Open(dir, testSymbol, "2024-06-06", DefaultOptions())
	if err != nil {
		t.Fatalf("Open next day: %v", err)
	}
	defer next.Close()
	if next.HasFired("up:10.00") {
		t.Error("fire leaked across trading days")
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"2024-05-01_sh600158.json": "old",
		"2024-06-04_sh600158.json": "recent",
		"2024-06-05_sh600158.json": "today",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Date(2024, 6, 5, 16, 0, 0, 0, time.UTC)
	removed, err := Prune(dir, 7, now)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d files, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "2024-06-04_sh600158.json")); err != nil {
		t.Error("recent file pruned")
	}
	if _, err := os.Stat(filepath.Join(dir, "2024-05-01_sh600158.json")); !os.IsNotExist(err) {
		t.Error("old file survived prune")
	}
}
