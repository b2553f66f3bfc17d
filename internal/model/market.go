package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// KLine (Candle) 代表一根K线
type KLine struct {
	Symbol    string          `json:"symbol"`
	Exchange  string          `json:"exchange"`
	Period    string          `json:"period"` // "1m", "5m"
	Open      decimal.Decimal `json:"o"`
	High      decimal.Decimal `json:"h"`
	Low       decimal.Decimal `json:"l"`
	Close     decimal.Decimal `json:"c"`
	Volume    decimal.Decimal `json:"v"`
	Timestamp time.Time       `json:"t"`
}

// IndicatorRow is one candle's close with the indicators computed up to it.
// Indicator fields are NaN during warm-up.
type IndicatorRow struct {
	Timestamp  time.Time
	Close      decimal.Decimal
	RSI        float64
	MACD       float64
	MACDSignal float64
}

// Defined reports whether every indicator value is usable.
func (r IndicatorRow) Defined() bool {
	return finite(r.RSI) && finite(r.MACD) && finite(r.MACDSignal)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PricePoint is a chart sample, time in unix seconds.
type PricePoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}
