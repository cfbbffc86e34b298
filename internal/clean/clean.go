// Package clean imputes missing feature values and standardises features.
package clean

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyFeatures is returned when there are no rows left to scale
	ErrEmptyFeatures = errors.New("feature matrix is empty after cleaning")
	// ErrUnknownColumn is returned for feature or target columns not in the frame
	ErrUnknownColumn = errors.New("unknown column")
	// ErrTargetInFeatures is returned when the target is also listed as a feature
	ErrTargetInFeatures = errors.New("target column is listed as a feature")
)

// MarketCapColumn is dropped when it carries no values at all
const MarketCapColumn = "MarketCap"

// CleanAndScale fills missing feature values with per-coin medians, then
// global medians, and standardises the features. The returned frame holds
// Name, Date, the scaled features in the given order and the unscaled target.
func CleanAndScale(f *model.Frame, featureCols []string, target string) (*model.Frame, *Scaler, error) {
	logger := log.With().Str("component", "clean").Logger()
	logger.Info().Int("rows", f.Len()).Int("features", len(featureCols)).Msg("Starting cleaning")

	df := f.Clone()

	if df.Has(MarketCapColumn) && df.MissingCount(MarketCapColumn) == df.Len() {
		df.Drop(MarketCapColumn)
		logger.Info().Msg("Dropped MarketCap (all NaN)")
	}

	if !df.Has(target) {
		return nil, nil, fmt.Errorf("%w: target %q", ErrUnknownColumn, target)
	}
	for _, c := range featureCols {
		if c == target {
			return nil, nil, fmt.Errorf("%w: %q", ErrTargetInFeatures, c)
		}
		if !df.Has(c) {
			return nil, nil, fmt.Errorf("%w: feature %q", ErrUnknownColumn, c)
		}
	}

	if df.Len() == 0 || len(featureCols) == 0 {
		return nil, nil, ErrEmptyFeatures
	}

	groups := groupRows(df)
	for _, c := range featureCols {
		vals := df.Col(c)
		for _, rows := range groups {
			fillWithMedian(vals, rows)
		}
		fillWithMedian(vals, nil)
	}

	remaining := 0
	for _, c := range featureCols {
		remaining += df.MissingCount(c)
	}
	logger.Info().Int("missing", remaining).Msg("Remaining missing values after fill")

	x, err := df.Select(featureCols...)
	if err != nil {
		return nil, nil, err
	}

	scaler, err := Fit(x, featureCols)
	if err != nil {
		return nil, nil, err
	}
	processed, err := scaler.Transform(x)
	if err != nil {
		return nil, nil, err
	}

	y := make([]float64, df.Len())
	copy(y, df.Col(target))
	if err := processed.Set(target, y); err != nil {
		return nil, nil, err
	}

	logger.Info().
		Int("rows", processed.Len()).
		Int("columns", len(processed.Columns())+2).
		Msg("Processed shape")
	return processed, scaler, nil
}

// groupRows maps every coin to its row indices; rows need not be contiguous
func groupRows(f *model.Frame) map[string][]int {
	groups := make(map[string][]int)
	for i, name := range f.Name {
		groups[name] = append(groups[name], i)
	}
	return groups
}

// fillWithMedian replaces NaN at the given rows (all rows when nil) with the
// median of the valid values among them. Nothing happens if none are valid.
func fillWithMedian(vals []float64, rows []int) {
	if rows == nil {
		rows = make([]int, len(vals))
		for i := range rows {
			rows[i] = i
		}
	}

	valid := make([]float64, 0, len(rows))
	for _, r := range rows {
		if !math.IsNaN(vals[r]) {
			valid = append(valid, vals[r])
		}
	}
	if len(valid) == 0 || len(valid) == len(rows) {
		return
	}

	m := median(valid)
	for _, r := range rows {
		if math.IsNaN(vals[r]) {
			vals[r] = m
		}
	}
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
