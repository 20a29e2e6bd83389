// Package cli provides the command-line interface for the sentinel tool.
// One invocation is one scheduler tick; the process runs to completion and
// exits.
package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ashare-sentinel/internal/config"
	"ashare-sentinel/internal/logging"
	"ashare-sentinel/internal/notify"
	"ashare-sentinel/internal/provider"
	"ashare-sentinel/internal/session"
	"ashare-sentinel/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Clock    *session.Clock
	Provider provider.Provider
	Notifier *notify.MultiNotifier
	Journal  store.Journal
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
		Clock:  session.NewClock(cfg.IsTradingDay),
	}

	app.Provider = buildProvider(cfg, app.Clock.Location(), logger)
	app.Notifier = notify.NewMultiNotifier(cfg.Notifications)

	if cfg.Journal.Enabled {
		journal, err := store.NewSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to open journal, archiving disabled")
		} else {
			app.Journal = journal
		}
	}

	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "A-share intraday price alerts and session reports",
		Long: `Sentinel polls public quote endpoints for one A-share symbol and
produces price-trigger alerts and intraday trading reports.

Designed to run from cron: 'sentinel alert' every minute during trading
hours, 'sentinel report --mode midday' at 11:45 and
'sentinel report --mode close' at 15:10. Each trigger fires at most once
per trading day.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Journal != nil {
				app.Journal.Close()
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/ashare-sentinel)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newAlertCmd(app))
	rootCmd.AddCommand(newReportCmd(app))
	rootCmd.AddCommand(newAuctionCmd(app))
	rootCmd.AddCommand(newSuggestCmd(app))
	rootCmd.AddCommand(newPruneCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))

	return rootCmd
}

func buildProvider(cfg *config.Config, loc *time.Location, logger zerolog.Logger) provider.Provider {
	timeout := cfg.Provider.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	switch cfg.Provider.Source {
	case "eastmoney":
		return provider.NewEastmoney(timeout, loc)
	case "sina":
		return provider.NewSina(timeout, loc)
	default:
		return provider.NewChain(logger,
			provider.NewEastmoney(timeout, loc),
			provider.NewSina(timeout, loc))
	}
}

// symbol resolves the symbol flag against the configured default.
func (a *App) symbol(cmd *cobra.Command) string {
	if s, _ := cmd.Flags().GetString("symbol"); s != "" {
		return s
	}
	return a.Config.Symbol.Code
}
