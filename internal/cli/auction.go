package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ashare-sentinel/internal/logging"
	"ashare-sentinel/internal/models"
	"ashare-sentinel/internal/provider"
	"ashare-sentinel/pkg/utils"
)

func newAuctionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auction",
		Short: "Capture a call-auction quote snapshot (run from cron near 09:25)",
		Long: `Captures the current quote into the auction directory. Free public
endpoints do not expose the 09:25 match price reliably after the fact, so
a snapshot taken around the auction close is the best available record.
Reports read it later; when it is missing they fall back to open-gap
wording.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuction(cmd.Context(), app, app.symbol(cmd))
		},
	}
	cmd.Flags().String("symbol", "", "symbol override, e.g. sh600158")
	return cmd
}

func runAuction(ctx context.Context, app *App, symbol string) error {
	if symbol == "" {
		return fmt.Errorf("no symbol configured")
	}
	logger := logging.WithSymbol(app.Logger, symbol)

	now := time.Now().In(app.Clock.Location())
	if !app.Clock.IsTradingDay(now) {
		logger.Debug().Msg("not a trading day, skipping auction capture")
		return nil
	}

	snap, err := utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() (models.QuoteSnapshot, error) {
		return app.Provider.Quote(ctx, symbol)
	})
	if err != nil {
		return err
	}
	if snap.Last <= 0 {
		logger.Warn().Msg("no usable auction price yet, skipping capture")
		return nil
	}

	day := app.Clock.TradingDayKey(now)
	if err := provider.SaveAuctionSnapshot(app.Config.Provider.AuctionDir, snap, day); err != nil {
		return err
	}
	logger.Info().Float64("price", snap.Last).Str("day", day).Msg("auction snapshot captured")
	return nil
}
