package clean

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func frameOf(t *testing.T, names []string, cols map[string][]float64, order ...string) *model.Frame {
	t.Helper()
	f := model.NewFrame(len(names))
	copy(f.Name, names)
	for i := range f.Date {
		f.Date[i] = time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
	}
	for _, c := range order {
		require.NoError(t, f.Set(c, cols[c]))
	}
	return f
}

func TestCleanAndScaleFillsPerCoinThenGlobal(t *testing.T) {
	f := frameOf(t,
		[]string{"BTC", "BTC", "BTC", "ETH", "ETH", "SOL"},
		map[string][]float64{
			"a":         {1, nan, 3, 10, nan, nan},
			"MarketCap": {nan, nan, nan, nan, nan, nan},
			"y":         {0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
		},
		"a", "MarketCap", "y",
	)

	out, scaler, err := CleanAndScale(f, []string{"a"}, "y")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "y"}, out.Columns())
	assert.False(t, out.Has("MarketCap"))
	assert.Equal(t, f.Name, out.Name)

	// BTC median 2, ETH median 10, SOL has nothing and takes the global median
	// of {1, 2, 3, 10, 10} = 3.
	filled := []float64{1, 2, 3, 10, 10, 3}
	mean, std := meanStd(filled)
	assert.InDelta(t, mean, scaler.Mean[0], 1e-12)
	assert.InDelta(t, std, scaler.Scale[0], 1e-12)
	for i, v := range filled {
		assert.InDelta(t, (v-mean)/std, out.Col("a")[i], 1e-12)
	}

	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, out.Col("y"), "target is not scaled")
	assert.True(t, math.IsNaN(f.Col("a")[1]), "input frame is not modified")
}

func TestCleanAndScaleKeepsMarketCapWithValues(t *testing.T) {
	f := frameOf(t, []string{"BTC", "BTC"},
		map[string][]float64{"MarketCap": {nan, 5}, "y": {1, 2}},
		"MarketCap", "y",
	)

	out, _, err := CleanAndScale(f, []string{"MarketCap"}, "y")
	require.NoError(t, err)
	assert.False(t, math.IsNaN(out.Col("MarketCap")[0]))
}

func TestCleanAndScaleErrors(t *testing.T) {
	f := frameOf(t, []string{"BTC"},
		map[string][]float64{"a": {1}, "y": {1}},
		"a", "y",
	)

	tests := []struct {
		name     string
		frame    *model.Frame
		features []string
		target   string
		want     error
	}{
		{"unknown target", f, []string{"a"}, "z", ErrUnknownColumn},
		{"unknown feature", f, []string{"b"}, "y", ErrUnknownColumn},
		{"target among features", f, []string{"a", "y"}, "y", ErrTargetInFeatures},
		{"no features", f, nil, "y", ErrEmptyFeatures},
		{"no rows", frameOf(t, nil, map[string][]float64{"a": {}, "y": {}}, "a", "y"), []string{"a"}, "y", ErrEmptyFeatures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CleanAndScale(tt.frame, tt.features, tt.target)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestScalerConstantColumn(t *testing.T) {
	f := frameOf(t, []string{"A", "A", "A"}, map[string][]float64{"c": {4, 4, 4}}, "c")

	s, err := Fit(f, []string{"c"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Scale[0])

	out, err := s.Transform(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, out.Col("c"))
}

func TestScalerInverseAndPersistence(t *testing.T) {
	f := frameOf(t, []string{"A", "A", "A", "A"}, map[string][]float64{"c": {1, 2, 3, 10}}, "c")

	s, err := Fit(f, []string{"c"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scaler.json")
	require.NoError(t, s.Save(path))
	loaded, err := LoadScaler(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	scaled, err := loaded.Transform(f)
	require.NoError(t, err)
	back, err := loaded.InverseTransform(scaled)
	require.NoError(t, err)
	for i, v := range f.Col("c") {
		assert.InDelta(t, v, back.Col("c")[i], 1e-12)
	}

	_, err = loaded.Transform(frameOf(t, []string{"A"}, map[string][]float64{"other": {1}}, "other"))
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestScalerColumnWithoutValues(t *testing.T) {
	f := frameOf(t, []string{"A", "A", "B"},
		map[string][]float64{"lag": {nan, nan, nan}, "c": {1, 2, 3}, "y": {1, 2, 3}},
		"lag", "c", "y",
	)

	out, s, err := CleanAndScale(f, []string{"lag", "c"}, "y")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.Mean[0]))
	assert.Equal(t, 1.0, s.Scale[0])
	assert.Equal(t, 3, out.MissingCount("lag"))

	path := filepath.Join(t.TempDir(), "scaler.json")
	require.NoError(t, s.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "null")

	loaded, err := LoadScaler(path)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(loaded.Mean[0]))
	assert.Equal(t, s.Mean[1], loaded.Mean[1])
	assert.Equal(t, s.Scale, loaded.Scale)
	assert.Equal(t, s.Columns, loaded.Columns)
	assert.Equal(t, 3, loaded.Samples)
}
