// Package pipeline runs the dataset stages in order: EDA, feature
// engineering, cleaning and scaling, splitting and output.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/Alias1177/cryptovol/internal/clean"
	"github.com/Alias1177/cryptovol/internal/config"
	"github.com/Alias1177/cryptovol/internal/database"
	"github.com/Alias1177/cryptovol/internal/dataset"
	"github.com/Alias1177/cryptovol/internal/eda"
	"github.com/Alias1177/cryptovol/internal/features"
	"github.com/Alias1177/cryptovol/internal/metrics"
	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/Alias1177/cryptovol/internal/split"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output file names inside the processed directory
const (
	FeaturesFile = "features.csv"
	TrainFile    = "train.csv"
	TestFile     = "test.csv"
	ScalerFile   = "scaler.json"
)

// Store persists pipeline results
type Store interface {
	CreateRun(ctx context.Context, run database.Run) (int64, error)
	SaveFeatures(ctx context.Context, runID int64, split string, f *model.Frame) (int, error)
}

// Result summarises a run
type Result struct {
	Report   eda.Report
	Features []string
	Target   string
	Meta     model.SplitMeta
	RunID    int64
	Train    *model.Frame
	Test     *model.Frame
	Scaler   *clean.Scaler
}

// Pipeline wires configuration, metrics and optional storage
type Pipeline struct {
	cfg     *config.Config
	metrics *metrics.Recorder
	store   Store
	report  io.Writer
	logger  zerolog.Logger
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithStore persists results after the split
func WithStore(s Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithReport prints the EDA table to w
func WithReport(w io.Writer) Option {
	return func(p *Pipeline) { p.report = w }
}

// WithMetrics uses an existing recorder
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline for the given configuration
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: log.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewRecorder()
	}
	return p
}

// Metrics returns the recorder used by the pipeline
func (p *Pipeline) Metrics() *metrics.Recorder {
	return p.metrics
}

// Run executes every stage starting from the raw dataset on disk
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	raw, err := p.Load()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Report, err = p.EDA(raw)
	if err != nil {
		return nil, err
	}

	feats, err := p.Features(ctx, raw)
	if err != nil {
		return nil, err
	}

	prepared, err := p.Prepare(ctx, feats)
	if err != nil {
		return nil, err
	}
	prepared.Report = res.Report
	return prepared, nil
}

// Load reads the raw dataset
func (p *Pipeline) Load() (*model.Frame, error) {
	var raw *model.Frame
	err := p.metrics.Stage("load", func() error {
		var err error
		raw, err = dataset.ReadFile(p.cfg.RawDataPath)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading raw data: %w", err)
	}
	p.metrics.Rows("load", raw.Len())
	p.logger.Info().Str("path", p.cfg.RawDataPath).Int("rows", raw.Len()).Msg("Loaded raw data")
	return raw, nil
}

// EDA summarises the raw data, writes the JSON report and prints the table
// when a report writer is configured
func (p *Pipeline) EDA(raw *model.Frame) (eda.Report, error) {
	var report eda.Report
	err := p.metrics.Stage("eda", func() error {
		report = eda.Summarize(raw)
		path, err := eda.WriteJSON(p.cfg.ProcessedDir, report)
		if err != nil {
			return err
		}
		p.logger.Info().Str("path", path).Int("coins", len(report.Coins)).Msg("Wrote EDA report")
		if p.report != nil {
			return eda.Render(p.report, report)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("eda: %w", err)
	}
	return report, nil
}

// Features computes engineered columns and writes features.csv
func (p *Pipeline) Features(ctx context.Context, raw *model.Frame) (*model.Frame, error) {
	var feats *model.Frame
	err := p.metrics.Stage("features", func() error {
		var err error
		feats, err = features.Compute(ctx, raw, features.Options{Workers: p.cfg.Workers})
		if err != nil {
			return err
		}
		return dataset.WriteFile(p.cfg.ProcessedPath(FeaturesFile), feats)
	})
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	p.metrics.Rows("features", feats.Len())
	p.logger.Info().Int("rows", feats.Len()).Int("columns", len(feats.Columns())).Msg("Computed features")
	return feats, nil
}

// Prepare cleans, scales and splits a feature frame, writes the outputs and
// persists them when a store is configured
func (p *Pipeline) Prepare(ctx context.Context, feats *model.Frame) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	featureCols := p.cfg.FeatureColumns
	var dropped []string
	if len(featureCols) == 0 {
		featureCols, dropped = usableColumns(feats, features.FeatureColumns(feats, p.cfg.TargetColumn))
		if len(dropped) > 0 {
			p.logger.Warn().Strs("columns", dropped).Msg("Dropped features without any value")
		}
	}

	res := &Result{Features: featureCols, Target: p.cfg.TargetColumn}

	var processed *model.Frame
	err := p.metrics.Stage("clean", func() error {
		missingBefore := 0
		for _, c := range featureCols {
			missingBefore += feats.MissingCount(c)
		}

		var err error
		processed, res.Scaler, err = clean.CleanAndScale(feats, featureCols, p.cfg.TargetColumn)
		if err != nil {
			return err
		}

		missingAfter := 0
		for _, c := range featureCols {
			missingAfter += processed.MissingCount(c)
		}
		p.metrics.MissingFilled(missingBefore - missingAfter)
		return res.Scaler.Save(p.cfg.ProcessedPath(ScalerFile))
	})
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}

	err = p.metrics.Stage("split", func() error {
		var err error
		if p.cfg.SplitMode == config.SplitPerCoin {
			res.Train, res.Test, res.Meta, err = split.PerCoin(processed, p.cfg.TestSize)
		} else {
			res.Train, res.Test, res.Meta, err = split.TimeSeries(processed, p.cfg.TestSize)
		}
		if err != nil {
			return err
		}
		if _, err := split.WriteMeta(p.cfg.ProcessedDir, res.Meta); err != nil {
			return err
		}
		if err := dataset.WriteFile(p.cfg.ProcessedPath(TrainFile), res.Train); err != nil {
			return err
		}
		return dataset.WriteFile(p.cfg.ProcessedPath(TestFile), res.Test)
	})
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	p.metrics.Rows("train", res.Meta.TrainSize)
	p.metrics.Rows("test", res.Meta.TestSize)
	p.logger.Info().
		Int("train", res.Meta.TrainSize).
		Int("test", res.Meta.TestSize).
		Int("split_index", res.Meta.SplitIndex).
		Str("mode", p.cfg.SplitMode).
		Msg("Split dataset")

	if p.store != nil {
		if err := p.metrics.Stage("store", func() error { return p.persist(ctx, res) }); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
	}

	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, res *Result) error {
	id, err := p.store.CreateRun(ctx, database.Run{
		Source:     p.cfg.RawDataPath,
		Target:     res.Target,
		SplitMode:  p.cfg.SplitMode,
		Features:   len(res.Features),
		TrainSize:  res.Meta.TrainSize,
		TestSize:   res.Meta.TestSize,
		SplitIndex: res.Meta.SplitIndex,
	})
	if err != nil {
		return err
	}
	res.RunID = id

	parts := []struct {
		name  string
		frame *model.Frame
	}{{"train", res.Train}, {"test", res.Test}}
	for _, part := range parts {
		name := part.name
		n, err := p.store.SaveFeatures(ctx, id, name, part.frame)
		if err != nil {
			return fmt.Errorf("saving %s: %w", name, err)
		}
		p.logger.Info().Int64("run_id", id).Str("split", name).Int("values", n).Msg("Persisted features")
	}
	return nil
}

// usableColumns splits cols into those with at least one value and those
// that are entirely missing, e.g. 30-day lags on a short history
func usableColumns(f *model.Frame, cols []string) (kept, dropped []string) {
	for _, c := range cols {
		if f.MissingCount(c) == f.Len() {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}
