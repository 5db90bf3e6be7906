package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var closes60 = []float64{100, 101, 102, 103, 105, 107, 106, 108, 110, 111, 112, 115, 117, 119, 118, 120, 121, 123, 125, 124, 126, 127, 129, 130, 132, 133, 134, 135, 136, 138, 139, 141, 140, 142, 144, 143, 145, 147, 149, 148, 150, 151, 149, 148, 150, 152, 151, 153, 154, 156, 155, 157, 158, 160, 161, 159, 158, 157, 159, 160}

func TestEMA(t *testing.T) {
	result := EMA([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.Len(t, result, 6)
	require.True(t, math.IsNaN(result[0]))
	require.True(t, math.IsNaN(result[1]))
	for i, want := range []float64{2, 3, 4, 5} {
		require.InDelta(t, want, result[i+2], 1e-9)
	}
}

func TestEMASkipsLeadingNaN(t *testing.T) {
	result := EMA([]float64{math.NaN(), 2, 4, 6}, 2)
	require.True(t, math.IsNaN(result[1]))
	require.InDelta(t, 3.0, result[2], 1e-9)
	require.InDelta(t, 5.0, result[3], 1e-9)
}

func TestSMA(t *testing.T) {
	result := SMA([]float64{2, 4, 6, 8}, 2)
	require.True(t, math.IsNaN(result[0]))
	require.Equal(t, []float64{3, 5, 7}, result[1:])
	require.Empty(t, SMA(nil, 3))
}

func TestMACD(t *testing.T) {
	macd, signal, hist := MACD(closes60)
	require.Len(t, macd, len(closes60))
	require.Len(t, signal, len(closes60))
	require.Len(t, hist, len(closes60))

	last := len(closes60) - 1
	require.InDelta(t, 5.582947, macd[last], 1e-6)
	require.InDelta(t, 6.307087, signal[last], 1e-6)
	require.InDelta(t, -0.724141, hist[last], 1e-6)

	// signal needs 26+9-1 bars before it exists
	require.True(t, math.IsNaN(signal[32]))
	require.False(t, math.IsNaN(signal[33]))
}

func TestRSI(t *testing.T) {
	rsi := RSI(closes60, 14)
	require.Len(t, rsi, len(closes60))
	require.InDelta(t, 73.084185, rsi[len(rsi)-1], 1e-6)
	require.True(t, math.IsNaN(rsi[13]))
}

func TestRSIEdgeCases(t *testing.T) {
	flat := RSI([]float64{5, 5, 5, 5}, 3)
	require.InDelta(t, 50.0, flat[3], 1e-9)
	up := RSI([]float64{1, 2, 3, 4}, 3)
	require.InDelta(t, 100.0, up[3], 1e-9)
	down := RSI([]float64{4, 3, 2, 1}, 3)
	require.InDelta(t, 0.0, down[3], 1e-9)
}

func TestPctChange(t *testing.T) {
	v, ok := PctChange([]float64{100, 102.5})
	require.True(t, ok)
	require.InDelta(t, 2.5, v, 1e-9)
	_, ok = PctChange([]float64{100})
	require.False(t, ok)
	_, ok = PctChange([]float64{0, 1})
	require.False(t, ok)
}

func TestVolumeRatio(t *testing.T) {
	v, ok := VolumeRatio([]float64{10, 20, 30, 40}, 3)
	require.True(t, ok)
	require.InDelta(t, 2.0, v, 1e-9)
	_, ok = VolumeRatio([]float64{10, 20}, 3)
	require.False(t, ok)
}

func TestLast(t *testing.T) {
	v, ok := Last([]float64{1, 2})
	require.True(t, ok)
	require.Equal(t, 2.0, v)
	_, ok = Last([]float64{1, math.NaN()})
	require.False(t, ok)
	_, ok = Last(nil)
	require.False(t, ok)
}
