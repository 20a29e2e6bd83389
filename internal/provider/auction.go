package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ashare-sentinel/internal/errors"
	"ashare-sentinel/internal/models"
)

// auctionFile is the persisted layout, one JSON file per (day, symbol),
// written by a cron run shortly after the 09:25 auction close.
type auctionFile struct {
	Symbol        string  `json:"symbol"`
	AuctionPrice  float64 `json:"auction_price"`
	AuctionAmount float64 `json:"auction_amount,omitempty"`
	CapturedAt    string  `json:"captured_at"`
}

func auctionPath(dir, symbol, day string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", day, symbol))
}

// SaveAuctionSnapshot captures a quote taken near the auction close into
// the auction directory for later report composition.
func SaveAuctionSnapshot(dir string, snap models.QuoteSnapshot, day string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating auction dir")
	}
	rec := auctionFile{
		Symbol:        snap.Symbol,
		AuctionPrice:  snap.Last,
		AuctionAmount: snap.Amount,
		CapturedAt:    time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(auctionPath(dir, snap.Symbol, day), data, 0o644)
}

// LoadAuctionSnapshot reads a previously captured auction snapshot.
// Missing or unreadable files return nil: auction data is best-effort and
// its absence only changes report wording.
func LoadAuctionSnapshot(dir, symbol, day string) *models.AuctionSnapshot {
	data, err := os.ReadFile(auctionPath(dir, symbol, day))
	if err != nil {
		return nil
	}
	var rec auctionFile
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	if rec.AuctionPrice <= 0 {
		return nil
	}
	capturedAt, _ := time.Parse(time.RFC3339, rec.CapturedAt)
	return &models.AuctionSnapshot{
		Symbol:     symbol,
		Price:      rec.AuctionPrice,
		Amount:     rec.AuctionAmount,
		CapturedAt: capturedAt,
	}
}
