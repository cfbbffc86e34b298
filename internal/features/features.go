// Package features derives log returns, volatility, momentum and technical
// indicators from per-coin OHLCV series.
package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrMissingColumns is returned when an input frame lacks OHLCV columns
var ErrMissingColumns = errors.New("missing required columns")

var requiredColumns = []string{"Open", "High", "Low", "Close", "Volume"}

var lags = []int{1, 7, 14, 30}

// Options tunes feature computation
type Options struct {
	// Workers bounds how many coins are processed concurrently
	Workers int
}

// Columns lists the engineered columns in the order Compute appends them
func Columns() []string {
	cols := []string{
		"LogReturn", "Return_%",
		"Volatility_7d", "Volatility_30d",
		"Momentum_7d", "Momentum_30d",
		"RSI_14",
		"EMA_12", "EMA_26", "MACD", "MACD_Signal",
		"EMA_10", "EMA_20", "EMA_50",
		"BB_Upper", "BB_Lower", "BB_Width",
		"High_Low_%", "Close_Open_%", "MarketPressure",
	}
	for _, lag := range lags {
		cols = append(cols,
			fmt.Sprintf("Close_lag%d", lag),
			fmt.Sprintf("Volume_lag%d", lag),
			fmt.Sprintf("Return_lag%d", lag),
		)
	}
	return append(cols, "ATR_14", "DayOfWeek", "Month", "Quarter")
}

// Compute returns a copy of f sorted by coin and date with every engineered
// column appended. Coins are independent and are processed concurrently;
// the output does not depend on the number of workers.
func Compute(ctx context.Context, f *model.Frame, opts Options) (*model.Frame, error) {
	var missing []string
	for _, c := range requiredColumns {
		if !f.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingColumns, missing)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	logger := log.With().Str("component", "features").Logger()
	start := time.Now()

	out := f.SortByNameDate()
	n := out.Len()

	names := Columns()
	cols := make(map[string][]float64, len(names))
	for _, name := range names {
		cols[name] = model.NaNs(n)
	}

	groups := out.Groups()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			computeGroup(out, grp, cols)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("computing features: %w", err)
	}

	for _, name := range names {
		if err := out.Set(name, cols[name]); err != nil {
			return nil, err
		}
	}

	logger.Debug().
		Int("rows", n).
		Int("coins", len(groups)).
		Int("columns", len(names)).
		Dur("elapsed", time.Since(start)).
		Msg("Computed features")
	return out, nil
}

// computeGroup fills rows [grp.Start, grp.End) of every output column.
// Groups never overlap so concurrent calls write disjoint ranges.
func computeGroup(f *model.Frame, grp model.Group, cols map[string][]float64) {
	seg := func(name string) []float64 { return f.Col(name)[grp.Start:grp.End] }
	put := func(name string, values []float64) { copy(cols[name][grp.Start:grp.End], values) }

	open, high, low, closes, volume := seg("Open"), seg("High"), seg("Low"), seg("Close"), seg("Volume")

	// Returns and volatility
	logReturn := logDiff(closes)
	returns := pctChange(closes)
	put("LogReturn", logReturn)
	put("Return_%", returns)
	put("Volatility_7d", rollingStd(logReturn, 7, 1))
	put("Volatility_30d", rollingStd(logReturn, 30, 1))

	// Momentum
	put("Momentum_7d", diff(closes, 7))
	put("Momentum_30d", diff(closes, 30))
	put("RSI_14", rsi(closes, 14))

	// MACD (12, 26) with a 9 period signal
	ema12, ema26 := ewm(closes, 12), ewm(closes, 26)
	macd := make([]float64, len(closes))
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}
	put("EMA_12", ema12)
	put("EMA_26", ema26)
	put("MACD", macd)
	put("MACD_Signal", ewm(macd, 9))

	for _, span := range []int{10, 20, 50} {
		put(fmt.Sprintf("EMA_%d", span), ewm(closes, span))
	}

	// Bollinger bands (20, 2)
	mean20 := rollingMean(closes, 20, 1)
	std20 := rollingStd(closes, 20, 1)
	upper := make([]float64, len(closes))
	lower := make([]float64, len(closes))
	width := make([]float64, len(closes))
	for i := range closes {
		upper[i] = mean20[i] + 2*std20[i]
		lower[i] = mean20[i] - 2*std20[i]
		width[i] = (upper[i] - lower[i]) / mean20[i]
	}
	put("BB_Upper", upper)
	put("BB_Lower", lower)
	put("BB_Width", width)

	// Candle shape
	hl := make([]float64, len(closes))
	co := make([]float64, len(closes))
	pressure := make([]float64, len(closes))
	for i := range closes {
		hl[i] = (high[i] - low[i]) / closes[i]
		co[i] = (closes[i] - open[i]) / open[i]
		pressure[i] = closes[i] - open[i]
	}
	put("High_Low_%", hl)
	put("Close_Open_%", co)
	put("MarketPressure", pressure)

	for _, lag := range lags {
		put(fmt.Sprintf("Close_lag%d", lag), shift(closes, lag))
		put(fmt.Sprintf("Volume_lag%d", lag), shift(volume, lag))
		put(fmt.Sprintf("Return_lag%d", lag), shift(returns, lag))
	}

	put("ATR_14", rollingMean(trueRange(high, low, closes), 14, 1))

	// Calendar
	dates := f.Date[grp.Start:grp.End]
	dow := make([]float64, len(dates))
	month := make([]float64, len(dates))
	quarter := make([]float64, len(dates))
	for i, d := range dates {
		if d.IsZero() {
			dow[i], month[i], quarter[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		dow[i] = float64((int(d.Weekday()) + 6) % 7) // Monday=0
		month[i] = float64(d.Month())
		quarter[i] = float64((int(d.Month())-1)/3 + 1)
	}
	put("DayOfWeek", dow)
	put("Month", month)
	put("Quarter", quarter)
}

// FeatureColumns returns every numeric column of f except the target
func FeatureColumns(f *model.Frame, target string) []string {
	var out []string
	for _, c := range f.Columns() {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}
