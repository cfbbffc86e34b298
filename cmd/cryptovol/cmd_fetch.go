package main

import (
	"fmt"

	"github.com/Alias1177/cryptovol/internal/api/twelvedata"
	"github.com/Alias1177/cryptovol/internal/dataset"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download candles from Twelve Data into the raw dataset",
	Long: `Download candles for every symbol and write them as one combined CSV
with Name, Date, Open, High, Low, Close, Volume and MarketCap columns.

Examples:
  cryptovol fetch
  cryptovol fetch --symbols BTC/USD,SOL/USD --days 730`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addFetchFlags(fetchCmd.Flags())
}

func addFetchFlags(fs *pflag.FlagSet) {
	fs.StringSlice("symbols", nil, "Symbols to download (overrides SYMBOLS)")
	fs.Int("days", 0, "Days of history (overrides HISTORY_DAYS)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if cfg.TwelveAPIKey == "" {
		return fmt.Errorf("TWELVE_API_KEY is not set")
	}
	client := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		RequestTimeout: cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     3,
	})

	candles, err := client.GetHistory(cmd.Context(), cfg.Symbols, cfg.Interval, cfg.HistoryDays)
	if err != nil {
		return err
	}

	if err := dataset.WriteFile(cfg.RawDataPath, dataset.FromCandles(candles)); err != nil {
		return err
	}
	log.Info().
		Str("path", cfg.RawDataPath).
		Int("candles", len(candles)).
		Strs("symbols", cfg.Symbols).
		Msg("Saved raw dataset")
	return nil
}
