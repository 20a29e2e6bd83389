package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ashare-sentinel/internal/logging"
	"ashare-sentinel/internal/models"
	"ashare-sentinel/internal/rules"
	"ashare-sentinel/pkg/utils"
)

func newSuggestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Derive trigger levels from recent daily bars and print a config block",
		Long: `Fetches daily klines for the symbol and proposes trigger levels: the
next round-number mark above the latest close, the recent high as an
upside target and the recent low as the breakdown level. The output is
a [triggers] block to paste into the config file; nothing is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			breakdownDays, _ := cmd.Flags().GetInt("breakdown-days")
			return runSuggest(cmd.Context(), app, app.symbol(cmd), days, breakdownDays)
		},
	}
	cmd.Flags().Int("days", 20, "lookback for the recent-high upside level")
	cmd.Flags().Int("breakdown-days", 5, "lookback for the recent-low breakdown level")
	cmd.Flags().String("symbol", "", "symbol override, e.g. sh600158")
	return cmd
}

func runSuggest(ctx context.Context, app *App, symbol string, days, breakdownDays int) error {
	if symbol == "" {
		return fmt.Errorf("no symbol configured")
	}
	logger := logging.WithSymbol(app.Logger, symbol)

	limit := days + 10 // headroom for holidays inside the lookback
	daily, err := utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() (models.BarSeries, error) {
		return app.Provider.Daily(ctx, symbol, limit)
	})
	if err != nil {
		return err
	}

	sug, err := rules.Suggest(daily, days, breakdownDays)
	if err != nil {
		return err
	}
	logger.Info().
		Float64("close", sug.LastClose).
		Float64("recent_high", sug.RecentHigh).
		Float64("recent_low", sug.RecentLow).
		Int("bars", len(daily)).
		Msg("derived trigger suggestion")

	fmt.Print(renderSuggestion(symbol, days, breakdownDays, sug))
	return nil
}

// renderSuggestion formats the proposal as a paste-ready TOML block with
// the derivation spelled out in comments.
func renderSuggestion(symbol string, days, breakdownDays int, sug rules.Suggestion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: close %.2f, %d-day high %.2f, %d-day low %.2f\n",
		symbol, sug.LastClose, days, sug.RecentHigh, breakdownDays, sug.RecentLow)
	sb.WriteString("[triggers]\n")

	marks := make([]string, len(sug.Triggers.LevelsUp))
	for i, lv := range sug.Triggers.LevelsUp {
		marks[i] = fmt.Sprintf("%.2f", lv)
	}
	fmt.Fprintf(&sb, "levels_up = [%s]\n", strings.Join(marks, ", "))
	fmt.Fprintf(&sb, "breakdown = %.2f\n", sug.Triggers.Breakdown)
	vwap := sug.Triggers.VwapCross != nil && *sug.Triggers.VwapCross
	fmt.Fprintf(&sb, "vwap_cross = %t\n", vwap)
	return sb.String()
}
