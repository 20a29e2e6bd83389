// Package state persists the per-symbol, per-trading-day record of fired
// triggers. One JSON file per (day, symbol) under a state directory, kept
// human-inspectable for operational debugging.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ashare-sentinel/internal/errors"
)

// VwapRelation records which side of the running VWAP the last evaluated
// tick closed on. It is the baseline for cross detection and lives in the
// durable state so restarts do not manufacture a false cross.
type VwapRelation string

const (
	RelationUnknown VwapRelation = ""
	RelationAbove   VwapRelation = "above"
	RelationBelow   VwapRelation = "below"
)

// dayRecord is the persisted JSON layout.
type dayRecord struct {
	Date       string               `json:"date"`
	Symbol     string               `json:"symbol"`
	Fired      map[string]time.Time `json:"fired"`
	VwapRel    VwapRelation         `json:"vwap_rel,omitempty"`
	LastFireAt string               `json:"last_fire_at,omitempty"`
}

// Options configures a Store.
type Options struct {
	// LockTimeout bounds the wait for the exclusive lock. Overlapping
	// scheduler invocations serialize through it; a slow holder makes the
	// newcomer fail rather than hang.
	LockTimeout time.Duration
	// LockStale is the age past which a leftover lock file from a killed
	// process is broken.
	LockStale time.Duration
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		LockTimeout: 3 * time.Second,
		LockStale:   2 * time.Minute,
	}
}

// Store is the durable fired-trigger record for one symbol on one trading
// day. It holds an exclusive lock on its backing file from Open until
// Close, so the read-check-then-write sequence in the evaluation engine is
// atomic with respect to concurrent invocations.
type Store struct {
	dir      string
	symbol   string
	day      string
	path     string
	lockPath string
	locked   bool
	corrupt  bool
	record   dayRecord
}

// Open acquires the lock for (day, symbol) and loads the persisted record.
// A missing file yields an empty record. A file that cannot be parsed is
// treated as empty and flagged via Corrupt; re-firing beats crash-looping.
func Open(dir, symbol, day string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewStateError("mkdir", dir, err)
	}

	s := &Store{
		dir:      dir,
		symbol:   symbol,
		day:      day,
		path:     filepath.Join(dir, fmt.Sprintf("%s_%s.json", day, symbol)),
		lockPath: filepath.Join(dir, fmt.Sprintf("%s_%s.lock", day, symbol)),
	}

	if err := s.acquireLock(opts); err != nil {
		return nil, err
	}

	if err := s.load(); err != nil {
		s.releaseLock()
		return nil, err
	}
	return s, nil
}

// Corrupt reports whether the persisted record could not be parsed and was
// replaced with an empty one. Callers should log a warning.
func (s *Store) Corrupt() bool {
	return s.corrupt
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// HasFired reports whether the rule key already fired today.
func (s *Store) HasFired(key string) bool {
	_, ok := s.record.Fired[key]
	return ok
}

// FiredAt returns when the rule key fired, or false if it has not.
func (s *Store) FiredAt(key string) (time.Time, bool) {
	at, ok := s.record.Fired[key]
	return at, ok
}

// RecordFire marks the rule key as fired at the given time and persists
// the record immediately. At most one entry per key survives; a repeat
// call for a fired key is a no-op.
func (s *Store) RecordFire(key string, at time.Time) error {
	if s.HasFired(key) {
		return nil
	}
	s.record.Fired[key] = at
	s.record.LastFireAt = at.Format(time.RFC3339)
	return s.Save()
}

// VwapRelation returns the persisted VWAP relation baseline.
func (s *Store) VwapRelation() VwapRelation {
	return s.record.VwapRel
}

// SetVwapRelation updates the VWAP relation baseline and persists it.
func (s *Store) SetVwapRelation(rel VwapRelation) error {
	if s.record.VwapRel == rel {
		return nil
	}
	s.record.VwapRel = rel
	return s.Save()
}

// Save writes the record with an atomic replace: the new content goes to a
// temp file in the same directory which then renames over the old one, so
// a kill mid-write leaves the last committed state intact.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.record, "", "  ")
	if err != nil {
		return errors.NewStateError("marshal", s.path, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(s.path)+".tmp-")
	if err != nil {
		return errors.NewStateError("save", s.path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewStateError("save", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewStateError("save", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewStateError("save", s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.NewStateError("save", s.path, err)
	}
	return nil
}

// Close releases the lock. The record is already durable; Close never
// writes.
func (s *Store) Close() error {
	s.releaseLock()
	return nil
}

func (s *Store) load() error {
	s.record = dayRecord{
		Date:   s.day,
		Symbol: s.symbol,
		Fired:  make(map[string]time.Time),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewStateError("load", s.path, err)
	}

	var rec dayRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.corrupt = true
		return nil
	}
	if rec.Date != s.day {
		// Stale file reused across days; day-keying makes it irrelevant.
		return nil
	}
	if rec.Fired == nil {
		rec.Fired = make(map[string]time.Time)
	}
	rec.Symbol = s.symbol
	s.record = rec
	return nil
}

// acquireLock creates the lock file exclusively, retrying until the
// bounded timeout. A lock older than LockStale is broken; its holder was
// killed before releasing.
func (s *Store) acquireLock(opts Options) error {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultOptions().LockTimeout
	}
	if opts.LockStale <= 0 {
		opts.LockStale = DefaultOptions().LockStale
	}

	deadline := time.Now().Add(opts.LockTimeout)
	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
			f.Close()
			s.locked = true
			return nil
		}
		if !os.IsExist(err) {
			return errors.NewStateError("lock", s.lockPath, err)
		}

		if fi, statErr := os.Stat(s.lockPath); statErr == nil && time.Since(fi.ModTime()) > opts.LockStale {
			s.breakStaleLock(opts.LockStale)
			continue
		}

		if !time.Now().Before(deadline) {
			return errors.NewStateError("lock", s.lockPath, errors.ErrLockTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// breakStaleLock removes a lock left behind by a killed process. Deleting
// the shared path outright would race a competitor that already broke the
// lock and created a fresh one, so the lock is first moved aside to a
// unique name and its age re-verified there; a fresh lock grabbed by
// mistake is moved back.
func (s *Store) breakStaleLock(stale time.Duration) {
	aside := fmt.Sprintf("%s.stale-%d-%d", s.lockPath, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(s.lockPath, aside); err != nil {
		// A competitor got there first.
		return
	}
	if fi, err := os.Stat(aside); err == nil && time.Since(fi.ModTime()) > stale {
		os.Remove(aside)
		return
	}
	os.Rename(aside, s.lockPath)
}

func (s *Store) releaseLock() {
	if s.locked {
		os.Remove(s.lockPath)
		s.locked = false
	}
}

// Prune removes state files older than keepDays trading days. Stale
// cross-day records are harmless thanks to day-keying; pruning is
// housekeeping only.
func Prune(dir string, keepDays int, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.NewStateError("prune", dir, err)
	}

	cutoff := now.AddDate(0, 0, -keepDays).Format("2006-01-02")
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		// Files are named YYYY-MM-DD_<symbol>.json.
		if len(name) < 10 || name[:10] >= cutoff {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}
