package eda

import (
	"math"

	"github.com/Alias1177/cryptovol/internal/model"
)

// Volatility regimes
const (
	RegimeLow     = "LOW"
	RegimeNormal  = "NORMAL"
	RegimeHigh    = "HIGH"
	RegimeUnknown = "UNKNOWN"
)

// CalculateATR calculates Average True Range over the last period candles
func CalculateATR(candles []model.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	var trueRanges []float64

	// Calculate True Range for each candle
	for i := 1; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)

		trueRanges = append(trueRanges, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	var sum float64
	for i := len(trueRanges) - period; i < len(trueRanges); i++ {
		sum += trueRanges[i]
	}

	return sum / float64(period)
}

// AssessVolatilityRegime compares short and long ATR.
// A ratio above 1.5 is HIGH, below 0.7 is LOW.
func AssessVolatilityRegime(candles []model.Candle) (string, float64) {
	atr5 := CalculateATR(candles, 5)
	atr20 := CalculateATR(candles, 20)
	if atr20 == 0 {
		return RegimeUnknown, 0
	}

	ratio := atr5 / atr20
	regime := RegimeNormal
	if ratio > 1.5 {
		regime = RegimeHigh
	} else if ratio < 0.7 {
		regime = RegimeLow
	}
	return regime, ratio
}

// CountPriceSpikes counts candles whose close-to-close move exceeds three
// times the ATR of the 10 candles before it
func CountPriceSpikes(candles []model.Candle) int {
	const window = 10
	if len(candles) < window+2 {
		return 0
	}

	tr := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(highLow, math.Max(highPrevClose, lowPrevClose))
	}

	var sum float64
	for i := 1; i <= window; i++ {
		sum += tr[i]
	}

	spikes := 0
	for i := window + 1; i < len(candles); i++ {
		if atr := sum / window; atr > 0 && math.Abs(candles[i].Close-candles[i-1].Close)/atr > 3.0 {
			spikes++
		}
		sum += tr[i] - tr[i-window]
	}
	return spikes
}
