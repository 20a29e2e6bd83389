package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ashare-sentinel/internal/state"
	"ashare-sentinel/internal/store"
)

func newPruneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove trigger-state files older than the configured retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			keep := app.Config.State.KeepDays
			if keep <= 0 {
				keep = 7
			}
			removed, err := state.Prune(app.Config.State.Dir, keep, time.Now().In(app.Clock.Location()))
			if err != nil {
				return err
			}
			app.Logger.Info().Int("removed", removed).Int("keep_days", keep).Msg("state pruned")
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently fired alerts from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Journal == nil {
				return fmt.Errorf("journal is disabled")
			}
			limit, _ := cmd.Flags().GetInt("limit")
			day, _ := cmd.Flags().GetString("day")

			fires, err := app.Journal.GetFires(cmd.Context(), store.FireFilter{
				Symbol:     app.symbol(cmd),
				TradingDay: day,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			if len(fires) == 0 {
				fmt.Println("no fired alerts recorded")
				return nil
			}
			for _, f := range fires {
				fmt.Printf("%s  %-12s  %s\n", f.TriggeredAt.Format("2006-01-02 15:04:05"), f.RuleKey, f.Message)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum rows to show")
	cmd.Flags().String("day", "", "filter by trading day YYYY-MM-DD")
	cmd.Flags().String("symbol", "", "symbol override")
	return cmd
}
