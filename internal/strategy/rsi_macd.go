package strategy

import (
	"paper-trader/internal/model"
)

const (
	DefaultOversold   = 35.0
	DefaultOverbought = 65.0
)

// RSIMACDStrategy 超卖区金叉买入, 超买或死叉卖出
type RSIMACDStrategy struct {
	oversold   float64
	overbought float64
}

func NewRSIMACDStrategy(oversold, overbought float64) *RSIMACDStrategy {
	return &RSIMACDStrategy{
		oversold:   oversold,
		overbought: overbought,
	}
}

func (s *RSIMACDStrategy) Name() string {
	return "RSI_MACD"
}

func (s *RSIMACDStrategy) Evaluate(prev, last model.IndicatorRow) Signal {
	// Golden Cross
	crossUp := prev.MACD < prev.MACDSignal && last.MACD > last.MACDSignal
	// Death Cross
	crossDown := prev.MACD > prev.MACDSignal && last.MACD < last.MACDSignal

	return Signal{
		Buy:  last.RSI < s.oversold && crossUp,
		Sell: last.RSI > s.overbought || crossDown,
	}
}
