package features

import "math"

// Rolling and exponential helpers for a single coin's series.
// NaN inputs are skipped by the rolling windows, so a window only counts
// valid observations toward minPeriods.

func logDiff(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(x[i]) - math.Log(x[i-1])
	}
	return out
}

// pctChange pads missing values forward before dividing, so a gap yields 0
// and the next observation is measured against the last valid one.
func pctChange(x []float64) []float64 {
	padded := make([]float64, len(x))
	last := math.NaN()
	for i, v := range x {
		if !math.IsNaN(v) {
			last = v
		}
		padded[i] = last
	}

	out := make([]float64, len(x))
	for i := range padded {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = padded[i]/padded[i-1] - 1
	}
	return out
}

func diff(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < n {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i] - x[i-n]
	}
	return out
}

func shift(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < n {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i-n]
	}
	return out
}

func rollingMean(x []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		var sum float64
		count := 0
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(x[j]) {
				sum += x[j]
				count++
			}
		}
		if count < minPeriods || count == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(count)
	}
	return out
}

// rollingStd is the sample standard deviation (ddof=1); a window with a single
// valid observation yields NaN.
func rollingStd(x []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		var sum float64
		count := 0
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(x[j]) {
				sum += x[j]
				count++
			}
		}
		if count < minPeriods || count < 2 {
			out[i] = math.NaN()
			continue
		}
		mean := sum / float64(count)
		var variance float64
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(x[j]) {
				variance += (x[j] - mean) * (x[j] - mean)
			}
		}
		out[i] = math.Sqrt(variance / float64(count-1))
	}
	return out
}

// ewm is the recursive exponential mean with alpha = 2/(span+1), seeded with
// the first valid value. Missing inputs repeat the previous output but still
// age it: weights follow absolute positions, so after a gap of k rows the old
// mean carries (1-alpha)^(k+1) against alpha for the new value.
func ewm(x []float64, span int) []float64 {
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(x))
	prev := math.NaN()
	oldWt := 1.0
	for i, v := range x {
		switch {
		case math.IsNaN(prev):
			prev = v
		default:
			oldWt *= 1 - alpha
			if !math.IsNaN(v) {
				prev = (oldWt*prev + alpha*v) / (oldWt + alpha)
				oldWt = 1
			}
		}
		out[i] = prev
	}
	return out
}

// rsi uses simple rolling means of gains and losses. A window without losses
// has an undefined relative strength and yields NaN.
func rsi(closes []float64, period int) []float64 {
	delta := diff(closes, 1)
	gain := make([]float64, len(delta))
	loss := make([]float64, len(delta))
	for i, d := range delta {
		if math.IsNaN(d) {
			gain[i], loss[i] = math.NaN(), math.NaN()
			continue
		}
		gain[i] = math.Max(d, 0)
		loss[i] = math.Max(-d, 0)
	}

	avgGain := rollingMean(gain, period, 1)
	avgLoss := rollingMean(loss, period, 1)

	out := make([]float64, len(closes))
	for i := range out {
		if avgLoss[i] == 0 || math.IsNaN(avgLoss[i]) || math.IsNaN(avgGain[i]) {
			out[i] = math.NaN()
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// trueRange is the greatest of high-low and the distances of high and low from
// the previous close. The first row has no previous close and uses high-low.
func trueRange(high, low, closes []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		tr := high[i] - low[i]
		if i > 0 && !math.IsNaN(closes[i-1]) {
			tr = math.Max(tr, math.Max(math.Abs(high[i]-closes[i-1]), math.Abs(low[i]-closes[i-1])))
		}
		out[i] = tr
	}
	return out
}
