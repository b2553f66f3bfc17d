package indicator

import (
	"github.com/markcheno/go-talib"
)

// flatRSI is reported while no close has moved yet; talib reports 0 there.
const flatRSI = 50

// RSI is talib's Wilder RSI (seeded with the simple average of the first
// period changes) with the warm-up rows set to NaN. A flat window reads 50.
func RSI(closes []float64, period int) []float64 {
	res := nanSlice(len(closes))
	if period < 2 || len(closes) <= period {
		return res
	}

	out := talib.Rsi(closes, period)
	copy(res[period:], out[period:])

	firstMove := 1
	for firstMove < len(closes) && closes[firstMove] == closes[0] {
		firstMove++
	}
	for i := period; i < firstMove; i++ {
		res[i] = flatRSI
	}
	return res
}
