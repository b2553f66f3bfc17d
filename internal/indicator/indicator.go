// Package indicator turns a candle series into RSI and MACD rows aligned
// one-to-one with the input. Values are NaN until enough history exists.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"paper-trader/internal/model"
)

var ErrDegenerateInput = errors.New("degenerate indicator input")

type Params struct {
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

func DefaultParams() Params {
	return Params{RSIPeriod: 14, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}
}

// Warmup is the number of leading rows that can never be fully defined.
func (p Params) Warmup() int {
	macd := p.MACDSlow - 1 + p.MACDSignal - 1
	if p.RSIPeriod > macd {
		return p.RSIPeriod
	}
	return macd
}

func (p Params) Validate() error {
	if p.RSIPeriod < 2 {
		return fmt.Errorf("rsi period must be >= 2, got %d", p.RSIPeriod)
	}
	if p.MACDFast < 1 || p.MACDSlow < 1 || p.MACDSignal < 1 {
		return fmt.Errorf("macd periods must be positive, got %d/%d/%d", p.MACDFast, p.MACDSlow, p.MACDSignal)
	}
	if p.MACDFast >= p.MACDSlow {
		return fmt.Errorf("macd fast period %d must be shorter than slow period %d", p.MACDFast, p.MACDSlow)
	}
	return nil
}

type Calculator struct {
	params Params
}

func NewCalculator(params Params) (*Calculator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{params: params}, nil
}

func (c *Calculator) Params() Params {
	return c.params
}

func (c *Calculator) Compute(candles []model.KLine) ([]model.IndicatorRow, error) {
	closes := make([]float64, len(candles))
	for i, k := range candles {
		if !k.Close.IsPositive() {
			return nil, fmt.Errorf("%w: close %s at %s", ErrDegenerateInput, k.Close, k.Timestamp)
		}
		if i > 0 && k.Timestamp.Before(candles[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: candles out of order at %s", ErrDegenerateInput, k.Timestamp)
		}
		closes[i] = k.Close.InexactFloat64()
	}

	rsi := RSI(closes, c.params.RSIPeriod)
	macd, signal := MACD(closes, c.params.MACDFast, c.params.MACDSlow, c.params.MACDSignal)

	rows := make([]model.IndicatorRow, len(candles))
	for i, k := range candles {
		rows[i] = model.IndicatorRow{
			Timestamp:  k.Timestamp,
			Close:      k.Close,
			RSI:        rsi[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
		}
	}
	return rows, nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
