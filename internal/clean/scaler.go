package clean

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/Alias1177/cryptovol/internal/model"
)

// Scaler standardises columns to zero mean and unit variance.
// It uses the population standard deviation; constant columns get scale 1.
// A column without any value has a NaN mean, stored as null in JSON.
type Scaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
	Samples int       `json:"n_samples_seen"`
}

// Fit learns mean and scale of the given columns, ignoring NaN values
func Fit(f *model.Frame, columns []string) (*Scaler, error) {
	s := &Scaler{
		Columns: append([]string(nil), columns...),
		Mean:    make([]float64, len(columns)),
		Scale:   make([]float64, len(columns)),
		Samples: f.Len(),
	}
	for i, c := range columns {
		vals := f.Col(c)
		if vals == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		mean, std := meanStd(vals)
		s.Mean[i] = mean
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Scale[i] = std
	}
	return s, nil
}

// Transform returns a copy of f with the scaler's columns standardised
func (s *Scaler) Transform(f *model.Frame) (*model.Frame, error) {
	return s.apply(f, func(v, mean, scale float64) float64 { return (v - mean) / scale })
}

// InverseTransform undoes Transform
func (s *Scaler) InverseTransform(f *model.Frame) (*model.Frame, error) {
	return s.apply(f, func(v, mean, scale float64) float64 { return v*scale + mean })
}

func (s *Scaler) apply(f *model.Frame, fn func(v, mean, scale float64) float64) (*model.Frame, error) {
	out := f.Clone()
	for i, c := range s.Columns {
		vals := out.Col(c)
		if vals == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		for j, v := range vals {
			vals[j] = fn(v, s.Mean[i], s.Scale[i])
		}
	}
	return out, nil
}

type scalerJSON struct {
	Columns []string   `json:"columns"`
	Mean    []*float64 `json:"mean"`
	Scale   []*float64 `json:"scale"`
	Samples int        `json:"n_samples_seen"`
}

// MarshalJSON writes NaN parameters as null, which encoding/json cannot do for float64
func (s *Scaler) MarshalJSON() ([]byte, error) {
	return json.Marshal(scalerJSON{
		Columns: s.Columns,
		Mean:    toNullable(s.Mean),
		Scale:   toNullable(s.Scale),
		Samples: s.Samples,
	})
}

// UnmarshalJSON reads null parameters back as NaN
func (s *Scaler) UnmarshalJSON(data []byte) error {
	var raw scalerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Columns = raw.Columns
	s.Mean = fromNullable(raw.Mean)
	s.Scale = fromNullable(raw.Scale)
	s.Samples = raw.Samples
	return nil
}

func toNullable(vals []float64) []*float64 {
	out := make([]*float64, len(vals))
	for i := range vals {
		if !math.IsNaN(vals[i]) && !math.IsInf(vals[i], 0) {
			out[i] = &vals[i]
		}
	}
	return out
}

func fromNullable(vals []*float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}

// Save writes the scaler parameters as JSON
func (s *Scaler) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding scaler: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadScaler reads parameters written by Save
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scaler: %w", err)
	}
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scaler: %w", err)
	}
	if len(s.Mean) != len(s.Columns) || len(s.Scale) != len(s.Columns) {
		return nil, fmt.Errorf("decoding scaler: %d columns, %d means, %d scales", len(s.Columns), len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

func meanStd(vals []float64) (float64, float64) {
	var sum float64
	n := 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	mean := sum / float64(n)
	var variance float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			variance += (v - mean) * (v - mean)
		}
	}
	return mean, math.Sqrt(variance / float64(n))
}
