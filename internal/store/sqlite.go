package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ashare-sentinel/internal/models"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal creates a new SQLite-backed journal.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	-- Fired alerts, one row per (symbol, trading day, rule key)
	CREATE TABLE IF NOT EXISTS fired_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		trading_day TEXT NOT NULL,
		rule_key TEXT NOT NULL,
		message TEXT NOT NULL,
		triggered_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, trading_day, rule_key)
	);
	CREATE INDEX IF NOT EXISTS idx_fired_alerts_day ON fired_alerts(trading_day);

	-- Composed reports
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		trading_day TEXT NOT NULL,
		mode TEXT NOT NULL,
		partial INTEGER NOT NULL DEFAULT 0,
		body TEXT NOT NULL,
		composed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reports_symbol_day ON reports(symbol, trading_day);
	`
	_, err := j.db.Exec(schema)
	return err
}

// LogFire archives a fired alert. Re-logging the same (symbol, day, key)
// is a no-op, matching the at-most-once firing guarantee.
func (j *SQLiteJournal) LogFire(ctx context.Context, event models.FireEvent, day string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fired_alerts (symbol, trading_day, rule_key, message, triggered_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.Symbol, day, event.RuleKey, event.Message, event.TriggeredAt)
	return err
}

// GetFires returns archived firings matching the filter, newest first.
func (j *SQLiteJournal) GetFires(ctx context.Context, filter FireFilter) ([]FireRecord, error) {
	query := `SELECT symbol, trading_day, rule_key, message, triggered_at FROM fired_alerts WHERE 1=1`
	var args []interface{}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.TradingDay != "" {
		query += " AND trading_day = ?"
		args = append(args, filter.TradingDay)
	}
	query += " ORDER BY triggered_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FireRecord
	for rows.Next() {
		var r FireRecord
		if err := rows.Scan(&r.Symbol, &r.TradingDay, &r.RuleKey, &r.Message, &r.TriggeredAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LogReport archives a composed report.
func (j *SQLiteJournal) LogReport(ctx context.Context, rec ReportRecord) error {
	partial := 0
	if rec.Partial {
		partial = 1
	}
	composedAt := rec.ComposedAt
	if composedAt.IsZero() {
		composedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO reports (symbol, trading_day, mode, partial, body, composed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Symbol, rec.TradingDay, rec.Mode, partial, rec.Text, composedAt)
	return err
}

// GetReports returns the most recent reports for a symbol.
func (j *SQLiteJournal) GetReports(ctx context.Context, symbol string, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, trading_day, mode, partial, body, composed_at
		FROM reports WHERE symbol = ? ORDER BY composed_at DESC LIMIT ?`,
		symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var r ReportRecord
		var partial int
		if err := rows.Scan(&r.Symbol, &r.TradingDay, &r.Mode, &partial, &r.Text, &r.ComposedAt); err != nil {
			return nil, err
		}
		r.Partial = partial != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
