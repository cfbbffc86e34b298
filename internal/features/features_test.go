package features

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Alias1177/cryptovol/internal/dataset"
	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateFrame builds n daily candles per coin starting on Monday 2024-01-01.
// Coins are interleaved and in reverse date order to exercise sorting.
func generateFrame(n int, coins ...string) *model.Frame {
	var candles []model.Candle
	for i := n - 1; i >= 0; i-- {
		for k, name := range coins {
			base := 100 * float64(k+1)
			c := base + float64(i) + float64(i%4)*1.5
			candles = append(candles, model.NewCandle(
				name,
				time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
				c-1, c+2, c-3, c, 1000+float64(i*10),
			))
		}
	}
	return dataset.FromCandles(candles)
}

func TestComputeAddsColumnsPerCoin(t *testing.T) {
	f := generateFrame(40, "ETH", "BTC")

	out, err := Compute(context.Background(), f, Options{Workers: 2})
	require.NoError(t, err)
	require.Equal(t, 80, out.Len())

	for _, c := range Columns() {
		assert.True(t, out.Has(c), "missing column %s", c)
	}

	// Sorted by name then date, so ETH starts at row 40.
	assert.Equal(t, "BTC", out.Name[0])
	assert.Equal(t, "ETH", out.Name[40])
	assert.True(t, out.Date[0].Before(out.Date[1]))

	logRet := out.Col("LogReturn")
	assert.True(t, math.IsNaN(logRet[0]))
	assert.True(t, math.IsNaN(logRet[40]), "returns restart at each coin")
	assert.InDelta(t, math.Log(out.Col("Close")[1]/out.Col("Close")[0]), logRet[1], 1e-12)

	assert.True(t, math.IsNaN(out.Col("Close_lag7")[46]))
	assert.Equal(t, out.Col("Close")[40], out.Col("Close_lag7")[47])

	assert.True(t, math.IsNaN(out.Col("Volatility_7d")[1]), "one return is not enough for a sample std")
	assert.False(t, math.IsNaN(out.Col("Volatility_7d")[2]))

	macd := out.Col("MACD")
	assert.InDelta(t, out.Col("EMA_12")[10]-out.Col("EMA_26")[10], macd[10], 1e-12)
	assert.Equal(t, out.Col("Close")[0], out.Col("EMA_50")[0], "ewm is seeded with the first close")
}

func TestComputeCalendar(t *testing.T) {
	out, err := Compute(context.Background(), generateFrame(10, "BTC"), Options{})
	require.NoError(t, err)

	// 2024-01-01 is a Monday, 2024-01-07 a Sunday.
	assert.Equal(t, 0.0, out.Col("DayOfWeek")[0])
	assert.Equal(t, 6.0, out.Col("DayOfWeek")[6])
	assert.Equal(t, 1.0, out.Col("Month")[0])
	assert.Equal(t, 1.0, out.Col("Quarter")[0])
}

func TestComputeIsIndependentOfWorkers(t *testing.T) {
	f := generateFrame(35, "ADA", "BTC", "ETH", "SOL", "XRP")

	seq, err := Compute(context.Background(), f, Options{Workers: 1})
	require.NoError(t, err)
	par, err := Compute(context.Background(), f, Options{Workers: 8})
	require.NoError(t, err)

	require.Equal(t, seq.Name, par.Name)
	for _, c := range seq.Columns() {
		assertSeries(t, seq.Col(c), par.Col(c))
	}
}

func TestComputeMissingColumns(t *testing.T) {
	f := model.NewFrame(1)
	require.NoError(t, f.Set("Close", []float64{1}))

	_, err := Compute(context.Background(), f, Options{})
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestComputeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compute(ctx, generateFrame(5, "BTC"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeatureColumnsExcludesTarget(t *testing.T) {
	f := model.NewFrame(1)
	require.NoError(t, f.Set("a", []float64{1}))
	require.NoError(t, f.Set("target", []float64{1}))
	require.NoError(t, f.Set("b", []float64{1}))

	assert.Equal(t, []string{"a", "b"}, FeatureColumns(f, "target"))
}
