package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// EMA is talib's SMA-seeded EMA (alpha = 2/(period+1)) aligned to values:
// leading NaNs are skipped and the rows before the seed are NaN.
func EMA(values []float64, period int) []float64 {
	res := nanSlice(len(values))
	if period < 1 {
		return res
	}

	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < period {
		return res
	}

	out := talib.Ema(values[start:], period)
	copy(res[start+period-1:], out[period-1:])
	return res
}

// MACD returns the fast/slow EMA difference and its signal EMA. The line is
// defined from index slow-1, the signal from slow+signal-2.
func MACD(closes []float64, fast, slow, signal int) ([]float64, []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	line := nanSlice(len(closes))
	for i := range closes {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			continue
		}
		line[i] = fastEMA[i] - slowEMA[i]
	}
	return line, EMA(line, signal)
}
