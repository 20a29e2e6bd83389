package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ashare-sentinel/internal/logging"
	"ashare-sentinel/internal/models"
	"ashare-sentinel/internal/notify"
	"ashare-sentinel/internal/provider"
	"ashare-sentinel/internal/report"
	"ashare-sentinel/internal/rules"
	"ashare-sentinel/internal/store"
	"ashare-sentinel/pkg/utils"
)

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compose and deliver an intraday report (run at 11:45 and 15:10)",
		RunE: func(cmd *cobra.Command, args []string) error {
			modeFlag, _ := cmd.Flags().GetString("mode")
			var mode report.Mode
			switch modeFlag {
			case "midday", "mid":
				mode = report.ModeMidday
			case "close":
				mode = report.ModeClose
			default:
				return fmt.Errorf("invalid mode %q (midday or close)", modeFlag)
			}

			dateFlag, _ := cmd.Flags().GetString("date")
			day := time.Now().In(app.Clock.Location())
			if dateFlag != "" {
				parsed, err := time.ParseInLocation("2006-01-02", dateFlag, app.Clock.Location())
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", dateFlag, err)
				}
				day = parsed
			}

			return runReport(cmd.Context(), app, app.symbol(cmd), mode, day)
		},
	}
	cmd.Flags().String("mode", "", "report mode: midday or close (required)")
	cmd.Flags().String("date", "", "trading day YYYY-MM-DD (default: today)")
	cmd.Flags().String("symbol", "", "symbol override, e.g. sh600158")
	cmd.MarkFlagRequired("mode")
	return cmd
}

func runReport(ctx context.Context, app *App, symbol string, mode report.Mode, day time.Time) error {
	if symbol == "" {
		return fmt.Errorf("no symbol configured")
	}
	logger := logging.WithSymbol(app.Logger, symbol)

	// A run before the window close is legal but usually a scheduling
	// mistake; the composed report will come out partial.
	now := time.Now().In(app.Clock.Location())
	cutoff := app.Clock.MorningEnd(day)
	if mode == report.ModeClose {
		cutoff = app.Clock.SessionClose(day)
	}
	if app.Clock.TradingDayKey(now) == app.Clock.TradingDayKey(day) && now.Before(cutoff) {
		logger.Warn().Time("cutoff", cutoff).Msg("composing before the window close, expect a partial report")
	}

	snap, err := utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() (models.QuoteSnapshot, error) {
		return app.Provider.Quote(ctx, symbol)
	})
	if err != nil {
		return deliverReportFailure(ctx, app, logger, symbol, err)
	}

	scale := app.Config.Provider.KlineScale
	if scale <= 0 {
		scale = 5
	}
	bars, err := app.Provider.Kline(ctx, symbol, scale, day)
	if err != nil {
		return deliverReportFailure(ctx, app, logger, symbol, err)
	}

	dayKey := app.Clock.TradingDayKey(day)
	auction := provider.LoadAuctionSnapshot(app.Config.Provider.AuctionDir, symbol, dayKey)
	indices := fetchIndexQuotes(ctx, app, logger)

	composer := report.NewComposer(app.Clock, app.Config.Symbol.TickPrecision, logger)
	composer.WatchLevels = watchLevelsFromTriggers(app)
	rep, err := composer.Compose(snap, bars, auction, indices, mode, day)
	if err != nil {
		return deliverReportFailure(ctx, app, logger, symbol, err)
	}

	text := rep.RenderText()
	if app.Notifier.HasChannels() {
		if sendErr := app.Notifier.Send(ctx, notify.Message{Text: text}); sendErr != nil {
			logger.Error().Err(sendErr).Msg("report delivery failed")
		}
	}

	if app.Journal != nil {
		rec := store.ReportRecord{
			Symbol:     symbol,
			TradingDay: rep.Day,
			Mode:       string(rep.Mode),
			Partial:    rep.Partial,
			Text:       text,
			ComposedAt: rep.Generated,
		}
		if jerr := app.Journal.LogReport(ctx, rec); jerr != nil {
			logger.Warn().Err(jerr).Msg("journal write failed")
		}
	}

	logger.Info().Str("mode", string(mode)).Bool("partial", rep.Partial).Msg("report delivered")
	return nil
}

// indexSymbols are the broad-market gauges quoted in the report's
// market-background section.
var indexSymbols = []string{"sh000001", "sz399001", "sz399006"}

// fetchIndexQuotes is best effort. A missing index quote degrades the
// report but never blocks it.
func fetchIndexQuotes(ctx context.Context, app *App, logger zerolog.Logger) []models.QuoteSnapshot {
	var out []models.QuoteSnapshot
	for _, sym := range indexSymbols {
		snap, err := app.Provider.Quote(ctx, sym)
		if err != nil {
			logger.Warn().Err(err).Str("index", sym).Msg("index quote unavailable")
			continue
		}
		out = append(out, snap)
	}
	return out
}

func watchLevelsFromTriggers(app *App) []float64 {
	set, err := rules.Parse(app.Config.Triggers, app.Config.Defaults)
	if err != nil {
		return nil
	}
	var out []float64
	for _, r := range set.UpsideLevels {
		out = append(out, r.Level)
	}
	if set.DownsideBreak != nil {
		out = append(out, set.DownsideBreak.Level)
	}
	return out
}

// deliverReportFailure surfaces a single explicit error line in place of
// the report, so the reader learns the report is missing rather than late.
func deliverReportFailure(ctx context.Context, app *App, logger zerolog.Logger, symbol string, err error) error {
	logger.Error().Err(err).Msg("report composition failed")
	line := fmt.Sprintf("report unavailable for %s: %v", symbol, err)
	if app.Notifier.HasChannels() {
		app.Notifier.Send(ctx, notify.Message{Text: line})
	}
	return err
}
