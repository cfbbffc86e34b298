// Package dataset reads and writes the combined per-coin OHLCV CSV files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/rs/zerolog/log"
)

// RequiredColumns must be present in every raw dataset
var RequiredColumns = []string{model.ColName, model.ColDate, "Open", "High", "Low", "Close", "Volume"}

// ErrMissingColumns is returned when the header lacks a required column
var ErrMissingColumns = errors.New("missing required columns")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// Read parses a CSV with a header row into a frame.
// Unparseable dates become missing; unparseable numbers become NaN.
// Extra text columns (no numeric values at all) are skipped; a column that is
// entirely empty is kept as all-NaN.
func Read(r io.Reader) (*model.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingColumns, missing)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	f := model.NewFrame(len(records))
	badDates := 0
	for i, rec := range records {
		f.Name[i] = field(rec, index[model.ColName])
		f.Date[i] = ParseDate(field(rec, index[model.ColDate]))
		if f.Date[i].IsZero() {
			badDates++
		}
	}

	for ci, h := range header {
		if h == model.ColName || h == model.ColDate || h == "index" || h == "" {
			continue
		}
		vals := make([]float64, len(records))
		numeric, text := false, false
		for i, rec := range records {
			raw := field(rec, ci)
			v, ok := ParseFloat(raw)
			vals[i] = v
			numeric = numeric || ok
			text = text || (!ok && !isMissingMarker(raw))
		}
		if text && !numeric && !isRequired(h) {
			log.Debug().Str("column", h).Msg("Skipping non-numeric column")
			continue
		}
		if err := f.Set(h, vals); err != nil {
			return nil, err
		}
	}

	if badDates > 0 {
		log.Warn().Int("rows", badDates).Msg("Dates could not be parsed and were set to missing")
	}
	return f, nil
}

// ReadFile reads a dataset from disk
func ReadFile(path string) (*model.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer file.Close()

	f, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Write serialises a frame as CSV with Name and Date first.
// NaN values and missing dates are written as empty fields.
func Write(w io.Writer, f *model.Frame) error {
	cw := csv.NewWriter(w)
	cols := f.Columns()

	header := append([]string{model.ColName, model.ColDate}, cols...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(header))
	for i := 0; i < f.Len(); i++ {
		row[0] = f.Name[i]
		row[1] = FormatDate(f.Date[i])
		for j, c := range cols {
			row[j+2] = FormatFloat(f.Col(c)[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes a frame to path, creating parent directories
func WriteFile(path string, f *model.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(file, f); err != nil {
		file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return file.Close()
}

// FromCandles builds a raw frame from candles
func FromCandles(candles []model.Candle) *model.Frame {
	f := model.NewFrame(len(candles))
	open := make([]float64, len(candles))
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	volume := make([]float64, len(candles))
	marketCap := make([]float64, len(candles))

	for i, c := range candles {
		f.Name[i] = c.Name
		f.Date[i] = c.Date
		open[i] = c.Open
		high[i] = c.High
		low[i] = c.Low
		closes[i] = c.Close
		volume[i] = c.Volume
		marketCap[i] = c.MarketCap
	}

	mustSet(f, "Open", open)
	mustSet(f, "High", high)
	mustSet(f, "Low", low)
	mustSet(f, "Close", closes)
	mustSet(f, "Volume", volume)
	mustSet(f, "MarketCap", marketCap)
	return f
}

// mustSet is for columns sized from the frame itself; a mismatch is a bug
func mustSet(f *model.Frame, name string, values []float64) {
	if err := f.Set(name, values); err != nil {
		panic(err)
	}
}

// ParseDate parses the supported date layouts, returning the zero time on failure
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatDate renders a date, keeping the time part only when it is not midnight
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// ParseFloat parses a numeric field; ok is false for empty or missing markers
func ParseFloat(s string) (float64, bool) {
	if isMissingMarker(s) {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// FormatFloat renders NaN as an empty field
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func isMissingMarker(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none", "na", "n/a":
		return true
	}
	return false
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func isRequired(col string) bool {
	for _, c := range RequiredColumns {
		if c == col {
			return true
		}
	}
	return false
}
