// Package indicators computes the technical indicators stored on a daily
// snapshot. Every function returns a series aligned with its input; positions
// without a full window hold NaN.
package indicators

import "math"

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// firstWindow returns the end index and mean of the first period-long window
// with no NaN values, or -1.
func firstWindow(values []float64, period int) (int, float64) {
	for end := period - 1; end < len(values); end++ {
		sum, ok := 0.0, true
		for j := end - period + 1; j <= end; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			return end, sum / float64(period)
		}
	}
	return -1, 0
}

// EMA produces the exponential moving average, seeded with the SMA of the
// first complete window. NaN inputs after the seed carry the previous value.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return []float64{}
	}
	out := nanSeries(len(values))
	start, seed := firstWindow(values, period)
	if start < 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[start] = seed
	for i := start + 1; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			out[i] = out[i-1]
			continue
		}
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// SMA produces the simple moving average over a sliding window.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return []float64{}
	}
	out := nanSeries(len(values))
	for end := period - 1; end < len(values); end++ {
		sum := 0.0
		for j := end - period + 1; j <= end; j++ {
			sum += values[j]
		}
		out[end] = sum / float64(period)
	}
	return out
}

// MACDWith returns MACD, signal and histogram for arbitrary periods.
func MACDWith(values []float64, fast, slow, signalPeriod int) ([]float64, []float64, []float64) {
	if len(values) == 0 {
		return []float64{}, []float64{}, []float64{}
	}
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	macd := make([]float64, len(values))
	for i := range values {
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	signal := EMA(macd, signalPeriod)
	hist := make([]float64, len(values))
	for i := range values {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// MACD is MACDWith(12, 26, 9).
func MACD(values []float64) ([]float64, []float64, []float64) {
	return MACDWith(values, 12, 26, 9)
}

// RSI computes the Relative Strength Index with Wilder smoothing.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return []float64{}
	}
	out := nanSeries(len(values))
	if len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		avgGain += math.Max(change, 0)
		avgLoss += math.Max(-change, 0)
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		avgGain = (avgGain*float64(period-1) + math.Max(change, 0)) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + math.Max(-change, 0)) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	case avgGain == 0:
		return 0
	default:
		return 100 - 100/(1+avgGain/avgLoss)
	}
}

// PctChange returns the percent change between the last two values.
func PctChange(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 || values[n-2] == 0 || math.IsNaN(values[n-2]) || math.IsNaN(values[n-1]) {
		return 0, false
	}
	return (values[n-1] - values[n-2]) / values[n-2] * 100, true
}

// VolumeRatio divides the last volume by the mean of the period volumes before it.
func VolumeRatio(volumes []float64, period int) (float64, bool) {
	n := len(volumes)
	if period <= 0 || n < period+1 {
		return 0, false
	}
	sum := 0.0
	for _, v := range volumes[n-1-period : n-1] {
		sum += v
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 0, false
	}
	return volumes[n-1] / avg, true
}

// Last returns the final value of series and whether it is a real number.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
