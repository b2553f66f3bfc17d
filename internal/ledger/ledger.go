// Package ledger owns the paper wallet: balance, the single open position
// and the closed trade history. Balance only moves when a position closes,
// by exactly the realized profit.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"paper-trader/internal/model"
	"paper-trader/internal/strategy"

	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("price must be positive")

var hundred = decimal.NewFromInt(100)

type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionOpened
	TransitionClosed
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionOpened:
		return "opened"
	case TransitionClosed:
		return "closed"
	default:
		return "none"
	}
}

// Transition describes what Apply changed. Position is set for opens,
// Trade for closes.
type Transition struct {
	Kind     TransitionKind
	Position *model.Position
	Trade    *model.ClosedTrade
	Balance  decimal.Decimal
}

type Ledger struct {
	mu           sync.RWMutex
	symbol       string
	balance      decimal.Decimal
	position     *model.Position
	history      []model.ClosedTrade
	historyLimit int
}

// NewLedger starts FLAT. historyLimit <= 0 keeps every closed trade.
func NewLedger(symbol string, initialBalance decimal.Decimal, historyLimit int) *Ledger {
	return &Ledger{
		symbol:       symbol,
		balance:      initialBalance,
		history:      make([]model.ClosedTrade, 0),
		historyLimit: historyLimit,
	}
}

// Apply runs one step of the FLAT/OPEN state machine. A buy is only acted
// on while flat and a sell only while a position is open.
func (l *Ledger) Apply(sig strategy.Signal, price decimal.Decimal, at time.Time) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.position == nil && sig.Buy:
		if !price.IsPositive() {
			return Transition{Balance: l.balance}, fmt.Errorf("open %s at %s: %w", l.symbol, price, ErrInvalidPrice)
		}
		l.position = &model.Position{OpenPrice: price, OpenedAt: at}
		pos := *l.position
		return Transition{Kind: TransitionOpened, Position: &pos, Balance: l.balance}, nil

	case l.position != nil && sig.Sell:
		if !price.IsPositive() {
			return Transition{Balance: l.balance}, fmt.Errorf("close %s at %s: %w", l.symbol, price, ErrInvalidPrice)
		}
		trade := l.settle(price, at)
		return Transition{Kind: TransitionClosed, Trade: &trade, Balance: l.balance}, nil
	}

	return Transition{Balance: l.balance}, nil
}

// settle must be called with mu held.
func (l *Ledger) settle(price decimal.Decimal, at time.Time) model.ClosedTrade {
	open := l.position.OpenPrice
	profit := price.Sub(open)

	trade := model.ClosedTrade{
		Symbol:        l.symbol,
		OpenedAt:      l.position.OpenedAt,
		ClosedAt:      at,
		OpenPrice:     open,
		ClosePrice:    price,
		ProfitValue:   profit,
		ProfitPercent: profit.Div(open).Mul(hundred),
	}

	l.balance = l.balance.Add(profit)
	l.history = append([]model.ClosedTrade{trade}, l.history...)
	if l.historyLimit > 0 && len(l.history) > l.historyLimit {
		l.history = l.history[:l.historyLimit]
	}
	l.position = nil
	return trade
}

func (l *Ledger) Snapshot() model.Wallet {
	l.mu.RLock()
	defer l.mu.RUnlock()

	w := model.Wallet{
		Balance: l.balance,
		History: make([]model.ClosedTrade, len(l.history)),
	}
	copy(w.History, l.history)
	if l.position != nil {
		pos := *l.position
		w.Position = &pos
	}
	return w
}

func (l *Ledger) InTrade() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.position != nil
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

func (l *Ledger) Symbol() string {
	return l.symbol
}
