package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"ashare-sentinel/internal/cli"
	"ashare-sentinel/internal/config"
	"ashare-sentinel/internal/logging"
)

func main() {
	// The config dir flag must be known before cobra runs, since it
	// decides where configuration loads from.
	configDir := ""
	fs := pflag.NewFlagSet("pre", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.StringVar(&configDir, "config", "", "")
	fs.Usage = func() {}
	_ = fs.Parse(os.Args[1:])

	logger := logging.NewLogger()

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
