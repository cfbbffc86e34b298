package main

import (
	"fmt"
	"os"

	"github.com/Alias1177/cryptovol/internal/config"
	"github.com/Alias1177/cryptovol/internal/database"
	"github.com/Alias1177/cryptovol/internal/dataset"
	"github.com/Alias1177/cryptovol/internal/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var edaCmd = &cobra.Command{
	Use:   "eda",
	Short: "Summarise the raw dataset per coin",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		raw, err := p.Load()
		if err != nil {
			return err
		}
		_, err = p.EDA(raw)
		return finish(p, err)
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Compute engineered features and write features.csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		raw, err := p.Load()
		if err != nil {
			return err
		}
		_, err = p.Features(cmd.Context(), raw)
		return finish(p, err)
	},
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Clean, scale and split an existing features.csv",
	Long: `Read features.csv from the output directory, fill missing values,
standardise the feature columns and split the rows chronologically.

Examples:
  cryptovol prepare --target Volatility_30d --test-size 0.25
  cryptovol prepare --split per_coin --features RSI_14,MACD,BB_Width`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		feats, err := dataset.ReadFile(cfg.ProcessedPath(pipeline.FeaturesFile))
		if err != nil {
			return fmt.Errorf("reading features (run 'cryptovol features' first): %w", err)
		}
		_, err = p.Prepare(cmd.Context(), feats)
		return finish(p, err)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage from the raw dataset to train and test sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		res, err := p.Run(cmd.Context())
		if err != nil {
			return finish(p, err)
		}
		log.Info().
			Str("target", res.Target).
			Int("features", len(res.Features)).
			Int("train", res.Meta.TrainSize).
			Int("test", res.Meta.TestSize).
			Int64("run_id", res.RunID).
			Msg("Pipeline finished")
		return finish(p, nil)
	},
}

func init() {
	for _, c := range []*cobra.Command{prepareCmd, runCmd} {
		addSplitFlags(c.Flags())
	}
	for _, c := range []*cobra.Command{featuresCmd, runCmd} {
		addWorkerFlag(c.Flags())
	}
	for _, c := range []*cobra.Command{edaCmd, runCmd} {
		c.Flags().Bool("quiet", false, "Do not print the EDA table")
	}
	rootCmd.AddCommand(edaCmd, featuresCmd, prepareCmd, runCmd)
}

func addWorkerFlag(fs *pflag.FlagSet) {
	fs.Int("workers", 0, "Coins processed concurrently (overrides WORKERS)")
}

func addSplitFlags(fs *pflag.FlagSet) {
	fs.String("target", "", "Target column (overrides TARGET_COLUMN)")
	fs.Float64("test-size", 0, "Test fraction (overrides TEST_SIZE)")
	fs.String("split", "", "Split mode: global or per_coin (overrides SPLIT_MODE)")
	fs.StringSlice("features", nil, "Feature columns (overrides FEATURE_COLUMNS)")
}

// applyFlags copies every flag set on the command line over the
// configuration; flags left unset keep the environment values
func applyFlags(c *config.Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "log-level":
			c.LogLevel = f.Value.String()
		case "raw":
			c.RawDataPath = f.Value.String()
		case "out":
			c.ProcessedDir = f.Value.String()
		case "target":
			c.TargetColumn = f.Value.String()
		case "split":
			c.SplitMode = f.Value.String()
		case "test-size":
			c.TestSize, err = fs.GetFloat64(f.Name)
		case "features":
			c.FeatureColumns, err = fs.GetStringSlice(f.Name)
		case "workers":
			c.Workers, err = fs.GetInt(f.Name)
		case "symbols":
			c.Symbols, err = fs.GetStringSlice(f.Name)
		case "days":
			c.HistoryDays, err = fs.GetInt(f.Name)
		}
	})
	return err
}

// newPipeline validates the configuration and opens the database when
// DATABASE_URL is set
func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []pipeline.Option
	if quiet, err := cmd.Flags().GetBool("quiet"); err != nil || !quiet {
		opts = append(opts, pipeline.WithReport(os.Stdout))
	}
	if cfg.DatabaseURL != "" {
		db, err := database.New(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		cobra.OnFinalize(func() { db.Close() })
		opts = append(opts, pipeline.WithStore(db))
	}
	return pipeline.New(cfg, opts...), nil
}

// finish writes the metrics file, if configured, whatever the outcome
func finish(p *pipeline.Pipeline, runErr error) error {
	if cfg.MetricsFile != "" {
		if err := p.Metrics().WriteFile(cfg.MetricsFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
		}
	}
	return runErr
}
