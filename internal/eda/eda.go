// Package eda summarises a raw per-coin OHLCV dataset before modelling.
package eda

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/Alias1177/cryptovol/internal/model"
)

// ReportFile is the file name used by WriteJSON
const ReportFile = "eda_report.json"

// tradingDays annualises daily volatility; crypto trades every day
const tradingDays = 365

// CoinSummary describes one coin's history
type CoinSummary struct {
	Name             string    `json:"name"`
	Rows             int       `json:"rows"`
	FirstDate        time.Time `json:"first_date"`
	LastDate         time.Time `json:"last_date"`
	MissingDates     int       `json:"missing_dates"`
	MeanClose        float64   `json:"mean_close"`
	MeanLogReturn    float64   `json:"mean_log_return"`
	StdLogReturn     float64   `json:"std_log_return"`
	AnnualVolatility float64   `json:"annual_volatility"`
	VolatilityRegime string    `json:"volatility_regime"`
	VolatilityRatio  float64   `json:"volatility_ratio"`
	PriceSpikes      int       `json:"price_spikes"`
}

// Report is the dataset-level summary
type Report struct {
	Rows    int            `json:"rows"`
	Coins   []CoinSummary  `json:"coins"`
	Missing map[string]int `json:"missing"`
}

// Summarize computes per-coin statistics and per-column missing counts
func Summarize(f *model.Frame) Report {
	sorted := f.SortByNameDate()
	report := Report{
		Rows:    sorted.Len(),
		Missing: make(map[string]int),
	}

	for _, c := range sorted.Columns() {
		report.Missing[c] = sorted.MissingCount(c)
	}
	missingDates := 0
	for _, d := range sorted.Date {
		if d.IsZero() {
			missingDates++
		}
	}
	report.Missing[model.ColDate] = missingDates

	for _, g := range sorted.Groups() {
		report.Coins = append(report.Coins, summarizeCoin(sorted, g))
	}
	return report
}

func summarizeCoin(f *model.Frame, g model.Group) CoinSummary {
	s := CoinSummary{Name: g.Name, Rows: g.Len()}
	candles := candlesOf(f, g)

	for _, c := range candles {
		if c.Date.IsZero() {
			s.MissingDates++
			continue
		}
		if s.FirstDate.IsZero() {
			s.FirstDate = c.Date
		}
		s.LastDate = c.Date
	}

	closes := make([]float64, len(candles))
	returns := make([]float64, 0, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		if i > 0 {
			returns = append(returns, math.Log(c.Close/candles[i-1].Close))
		}
	}
	s.MeanClose, _ = meanStd(closes, 0)
	s.MeanLogReturn, s.StdLogReturn = meanStd(returns, 1)
	s.AnnualVolatility = s.StdLogReturn * math.Sqrt(tradingDays)
	s.VolatilityRegime, s.VolatilityRatio = AssessVolatilityRegime(candles)
	s.PriceSpikes = CountPriceSpikes(candles)
	return s
}

func candlesOf(f *model.Frame, g model.Group) []model.Candle {
	col := func(name string, i int) float64 {
		if vals := f.Col(name); vals != nil {
			return vals[i]
		}
		return math.NaN()
	}
	candles := make([]model.Candle, 0, g.Len())
	for i := g.Start; i < g.End; i++ {
		c := model.NewCandle(f.Name[i], f.Date[i],
			col("Open", i), col("High", i), col("Low", i), col("Close", i), col("Volume", i))
		c.MarketCap = col("MarketCap", i)
		candles = append(candles, c)
	}
	return candles
}

// meanStd ignores NaN and infinite values; ddof selects sample (1) or population (0) std
func meanStd(vals []float64, ddof int) (float64, float64) {
	var sum float64
	n := 0
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	mean := sum / float64(n)
	if n-ddof <= 0 {
		return mean, math.NaN()
	}
	var variance float64
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			variance += (v - mean) * (v - mean)
		}
	}
	return mean, math.Sqrt(variance / float64(n-ddof))
}

// Render prints the report as an aligned table
func Render(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "COIN\tROWS\tFROM\tTO\tMEAN CLOSE\tSTD LOG RET\tANNUAL VOL\tREGIME\tSPIKES\n")
	for _, c := range r.Coins {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.4f\t%.4f\t%.2f%%\t%s\t%d\n",
			c.Name, c.Rows, formatDate(c.FirstDate), formatDate(c.LastDate),
			c.MeanClose, c.StdLogReturn, c.AnnualVolatility*100, c.VolatilityRegime, c.PriceSpikes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nRows: %d, coins: %d\n", r.Rows, len(r.Coins))
	for _, col := range sortedKeys(r.Missing) {
		if n := r.Missing[col]; n > 0 {
			fmt.Fprintf(w, "Missing %s: %d\n", col, n)
		}
	}
	return nil
}

// WriteJSON writes the report to dir/eda_report.json
func WriteJSON(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(sanitize(r), "", "    ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	path := filepath.Join(dir, ReportFile)
	return path, os.WriteFile(path, data, 0o644)
}

// sanitize replaces NaN and Inf, which encoding/json rejects, with zero
func sanitize(r Report) Report {
	clean := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	out := r
	out.Coins = make([]CoinSummary, len(r.Coins))
	for i, c := range r.Coins {
		c.MeanClose = clean(c.MeanClose)
		c.MeanLogReturn = clean(c.MeanLogReturn)
		c.StdLogReturn = clean(c.StdLogReturn)
		c.AnnualVolatility = clean(c.AnnualVolatility)
		c.VolatilityRatio = clean(c.VolatilityRatio)
		out.Coins[i] = c
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
