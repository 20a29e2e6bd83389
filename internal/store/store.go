// Package store provides the operational journal: fired alerts and
// composed reports archived for later review. The authoritative trigger
// de-dup state lives in the JSON file store, not here.
package store

import (
	"context"
	"time"

	"ashare-sentinel/internal/models"
)

// Journal defines the interface for the alert/report archive.
type Journal interface {
	LogFire(ctx context.Context, event models.FireEvent, day string) error
	GetFires(ctx context.Context, filter FireFilter) ([]FireRecord, error)
	LogReport(ctx context.Context, rec ReportRecord) error
	GetReports(ctx context.Context, symbol string, limit int) ([]ReportRecord, error)
	Close() error
}

// FireRecord is one archived alert firing.
type FireRecord struct {
	Symbol      string
	TradingDay  string
	RuleKey     string
	Message     string
	TriggeredAt time.Time
}

// FireFilter filters archived firings.
type FireFilter struct {
	Symbol     string
	TradingDay string
	Limit      int
}

// ReportRecord is one archived composed report.
type ReportRecord struct {
	Symbol     string
	TradingDay string
	Mode       string
	Partial    bool
	Text       string
	ComposedAt time.Time
}
