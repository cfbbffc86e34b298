// Package split divides a dataset into chronological train and test parts.
package split

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Alias1177/cryptovol/internal/model"
)

// MetaFile is the name of the file written by WriteMeta
const MetaFile = "split_indices.json"

// ErrInvalidTestSize is returned for a test size outside (0, 1)
var ErrInvalidTestSize = errors.New("test size must be in (0, 1)")

// TimeSeries sorts f by coin and date and cuts it at int(n*(1-testSize)).
// Rows are never shuffled: the train part is everything before the cut.
func TimeSeries(f *model.Frame, testSize float64) (*model.Frame, *model.Frame, model.SplitMeta, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, model.SplitMeta{}, fmt.Errorf("%w: %v", ErrInvalidTestSize, testSize)
	}

	sorted := f.SortByNameDate()
	n := sorted.Len()
	idx := int(float64(n) * (1 - testSize))

	train := sorted.Slice(0, idx)
	test := sorted.Slice(idx, n)
	return train, test, model.SplitMeta{
		TrainSize:  train.Len(),
		TestSize:   test.Len(),
		SplitIndex: idx,
	}, nil
}

// PerCoin applies the TimeSeries cut inside every coin so each coin keeps its
// latest rows for testing. SplitIndex reports the train size.
func PerCoin(f *model.Frame, testSize float64) (*model.Frame, *model.Frame, model.SplitMeta, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, model.SplitMeta{}, fmt.Errorf("%w: %v", ErrInvalidTestSize, testSize)
	}

	sorted := f.SortByNameDate()
	var trainRows, testRows []int
	for _, g := range sorted.Groups() {
		cut := g.Start + int(float64(g.Len())*(1-testSize))
		for r := g.Start; r < g.End; r++ {
			if r < cut {
				trainRows = append(trainRows, r)
			} else {
				testRows = append(testRows, r)
			}
		}
	}

	train := sorted.Take(trainRows)
	test := sorted.Take(testRows)
	return train, test, model.SplitMeta{
		TrainSize:  train.Len(),
		TestSize:   test.Len(),
		SplitIndex: train.Len(),
	}, nil
}

// WriteMeta saves split metadata as indented JSON in dir, creating it if needed
func WriteMeta(dir string, meta model.SplitMeta) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encoding split metadata: %w", err)
	}
	path := filepath.Join(dir, MetaFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ReadMeta loads metadata written by WriteMeta
func ReadMeta(dir string) (model.SplitMeta, error) {
	var meta model.SplitMeta
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return meta, fmt.Errorf("reading split metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decoding split metadata: %w", err)
	}
	return meta, nil
}
