package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ashare-sentinel/internal/engine"
	"ashare-sentinel/internal/logging"
	"ashare-sentinel/internal/models"
	"ashare-sentinel/internal/notify"
	"ashare-sentinel/internal/rules"
	"ashare-sentinel/internal/state"
	"ashare-sentinel/pkg/utils"
)

func newAlertCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Evaluate price triggers for one tick (run from cron every minute)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlert(cmd.Context(), app, app.symbol(cmd))
		},
	}
	cmd.Flags().String("symbol", "", "symbol override, e.g. sh600158")
	return cmd
}

func runAlert(ctx context.Context, app *App, symbol string) error {
	if symbol == "" {
		return fmt.Errorf("no symbol configured")
	}
	logger := logging.WithSymbol(app.Logger, symbol)

	now := time.Now().In(app.Clock.Location())
	window := app.Clock.Classify(now)
	if !window.Traded() {
		logger.Debug().Stringer("window", window).Msg("outside traded windows, nothing to do")
		return nil
	}

	ruleSet, err := rules.Parse(app.Config.Triggers, app.Config.Defaults)
	if err != nil {
		return err
	}
	if ruleSet.Empty() {
		logger.Debug().Msg("no triggers configured")
		return nil
	}

	snap, err := utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() (models.QuoteSnapshot, error) {
		return app.Provider.Quote(ctx, symbol)
	})
	if err != nil {
		// Fail-silent toward delivery; the next cron tick retries.
		logger.Error().Err(err).Msg("quote fetch failed, skipping evaluation")
		return err
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = now
	}

	// Bars back the VWAP when the snapshot carries no cumulative volume;
	// their absence only degrades the VWAP rule.
	var bars models.BarSeries
	if ruleSet.VwapCross {
		bars, err = app.Provider.Kline(ctx, symbol, 1, now)
		if err != nil {
			logger.Warn().Err(err).Msg("kline fetch failed, VWAP falls back to snapshot")
		}
	}

	day := app.Clock.TradingDayKey(snap.Timestamp)
	st, err := state.Open(app.Config.State.Dir, symbol, day, state.Options{
		LockTimeout: app.Config.State.LockTimeout,
	})
	if err != nil {
		logger.Error().Err(err).Msg("state store unavailable, aborting evaluation")
		return err
	}
	defer st.Close()
	if st.Corrupt() {
		logger.Warn().Str("path", st.Path()).Msg("state file corrupt, starting from empty record")
	}

	eng := engine.New(app.Config.Symbol.TickPrecision, logger)
	events, evalErr := eng.Evaluate(snap, bars, ruleSet, window, st)

	for _, ev := range events {
		if app.Notifier.HasChannels() {
			if sendErr := app.Notifier.Send(ctx, notify.Message{Text: ev.Message}); sendErr != nil {
				logger.Error().Err(sendErr).Str("rule_key", ev.RuleKey).Msg("alert delivery failed")
			}
		}
		if app.Journal != nil {
			if jerr := app.Journal.LogFire(ctx, ev, day); jerr != nil {
				logger.Warn().Err(jerr).Str("rule_key", ev.RuleKey).Msg("journal write failed")
			}
		}
	}

	if evalErr != nil {
		logger.Error().Err(evalErr).Int("fired", len(events)).Msg("evaluation aborted mid-batch")
		return evalErr
	}
	logger.Debug().Int("fired", len(events)).Float64("last", snap.Last).Msg("evaluation complete")
	return nil
}
