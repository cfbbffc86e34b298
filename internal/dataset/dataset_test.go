package dataset

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `index,Name,Symbol,Date,Open,High,Low,Close,Volume,MarketCap
0,Bitcoin,BTC,2024-01-01,100,110,90,105,1000,
1,Bitcoin,BTC,2024-01-02 00:00:00,105,115,100,110,NaN,
2,Ethereum,ETH,not-a-date,10,11,9,10.5,500,
`

func TestReadParsesColumns(t *testing.T) {
	f, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 3, f.Len())
	assert.Equal(t, []string{"Bitcoin", "Bitcoin", "Ethereum"}, f.Name)
	assert.Equal(t, []string{"Open", "High", "Low", "Close", "Volume", "MarketCap"}, f.Columns())
	assert.False(t, f.Has("index"))
	assert.False(t, f.Has("Symbol"), "text columns are skipped")

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), f.Date[1])
	assert.True(t, f.Date[2].IsZero(), "bad dates are coerced to missing")
	assert.True(t, math.IsNaN(f.Col("Volume")[1]))
	assert.Equal(t, 3, f.MissingCount("MarketCap"), "an all-empty column is kept")
}

func TestReadMissingColumns(t *testing.T) {
	_, err := Read(strings.NewReader("Name,Date,Close\nBTC,2024-01-01,1\n"))
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "Open")
	assert.Contains(t, err.Error(), "Volume")
}

func TestWriteThenReadKeepsValues(t *testing.T) {
	f, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Name,Date,Open,High,Low,Close,Volume,MarketCap", lines[0])
	assert.Equal(t, "Bitcoin,2024-01-02,105,115,100,110,,", lines[2])
	assert.Equal(t, "Ethereum,,10,11,9,10.5,500,", lines[3])
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	f := FromCandles([]model.Candle{
		model.NewCandle("BTC", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 1, 2, 0.5, 1.5, 10),
	})

	require.NoError(t, WriteFile(path, f))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, back.Name)
	assert.Equal(t, []float64{1.5}, back.Col("Close"))
	assert.True(t, math.IsNaN(back.Col("MarketCap")[0]))
}

func TestFromCandlesPanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() { mustSet(model.NewFrame(2), "Close", []float64{1}) })
	assert.NotPanics(t, func() { mustSet(model.NewFrame(1), "Close", []float64{1}) })
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-06", time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
		{"2024-05-06 13:14:15", time.Date(2024, 5, 6, 13, 14, 15, 0, time.UTC)},
		{"2024-05-06T13:14:15Z", time.Date(2024, 5, 6, 13, 14, 15, 0, time.UTC)},
		{"", time.Time{}},
		{"garbage", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, tt.want.Equal(ParseDate(tt.in)))
		})
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", FormatDate(time.Time{}))
	assert.Equal(t, "2024-05-06", FormatDate(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-06 01:02:03", FormatDate(time.Date(2024, 5, 6, 1, 2, 3, 0, time.UTC)))
}
