package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position 当前持仓 (最多一个)
type Position struct {
	OpenPrice decimal.Decimal `json:"open_price"`
	OpenedAt  time.Time       `json:"opened_at"`
}

// ClosedTrade 已平仓交易记录
type ClosedTrade struct {
	Symbol        string          `json:"symbol"`
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      time.Time       `json:"closed_at"`
	OpenPrice     decimal.Decimal `json:"open_price"`
	ClosePrice    decimal.Decimal `json:"close_price"`
	ProfitValue   decimal.Decimal `json:"profit_value"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
}

// Wallet is a point-in-time copy of the paper account.
// History is ordered most recent first.
type Wallet struct {
	Balance  decimal.Decimal `json:"balance"`
	Position *Position       `json:"position,omitempty"`
	History  []ClosedTrade   `json:"history"`
}

func (w Wallet) InTrade() bool {
	return w.Position != nil
}

type EventType string

const (
	EventOpen  EventType = "open"
	EventClose EventType = "close"
)

// TradeEvent is emitted after the ledger commits a transition.
type TradeEvent struct {
	ID      string          `json:"id"`
	Type    EventType       `json:"type"`
	Symbol  string          `json:"symbol"`
	Price   decimal.Decimal `json:"price"`
	Balance decimal.Decimal `json:"balance"`
	Time    time.Time       `json:"time"`
	Trade   *ClosedTrade    `json:"trade,omitempty"`
}
