package strategy

import (
	"paper-trader/internal/model"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionNone Action = "none"
)

// Signal carries both entry and exit conditions of one evaluation.
// They are not mutually exclusive; the ledger decides which one is actionable.
type Signal struct {
	Buy  bool
	Sell bool
}

func (s Signal) Has(a Action) bool {
	switch a {
	case ActionBuy:
		return s.Buy
	case ActionSell:
		return s.Sell
	case ActionNone:
		return !s.Buy && !s.Sell
	}
	return false
}

func (s Signal) String() string {
	switch {
	case s.Buy && s.Sell:
		return "buy+sell"
	case s.Buy:
		return string(ActionBuy)
	case s.Sell:
		return string(ActionSell)
	default:
		return string(ActionNone)
	}
}

type Strategy interface {
	Name() string
	Evaluate(prev, last model.IndicatorRow) Signal
}
