package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alias1177/cryptovol/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cryptovol",
	Short: "Prepare cryptocurrency volatility datasets",
	Long: `cryptovol downloads daily OHLCV candles, summarises them, derives
volatility and technical features, then cleans, scales and splits the result
into chronological train and test sets.

Settings come from the environment (or a .env file); flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// config.Load may already log, so honour --log-level before it runs
		level, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		setupLogging(level)

		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := applyFlags(cfg, cmd.Flags()); err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)
		return nil
	},
}

func init() {
	addRootFlags(rootCmd.PersistentFlags())
}

func addRootFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	fs.String("raw", "", "Raw dataset CSV (overrides RAW_DATA_PATH)")
	fs.String("out", "", "Output directory (overrides PROCESSED_DIR)")
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
