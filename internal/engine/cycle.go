package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"paper-trader/internal/chart"
	"paper-trader/internal/connector"
	"paper-trader/internal/infrastructure"
	"paper-trader/internal/ledger"
	"paper-trader/internal/model"
	"paper-trader/internal/strategy"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IndicatorCalculator interface {
	Compute(candles []model.KLine) ([]model.IndicatorRow, error)
}

type EventSubmitter interface {
	Submit(event model.TradeEvent)
}

type CycleConfig struct {
	Symbol      string
	Timeframe   string
	CandleLimit int
	Interval    time.Duration
}

// Cycle polls the market on a fixed cadence and drives the ledger.
// Iterations never overlap.
type Cycle struct {
	cfg      CycleConfig
	source   connector.CandleSource
	calc     IndicatorCalculator
	strategy strategy.Strategy
	ledger   *ledger.Ledger
	window   *chart.Window
	events   EventSubmitter
	logger   *zap.Logger
	now      func() time.Time
}

func NewCycle(
	cfg CycleConfig,
	source connector.CandleSource,
	calc IndicatorCalculator,
	strat strategy.Strategy,
	l *ledger.Ledger,
	window *chart.Window,
	events EventSubmitter,
	logger *zap.Logger,
) *Cycle {
	return &Cycle{
		cfg:      cfg,
		source:   source,
		calc:     calc,
		strategy: strat,
		ledger:   l,
		window:   window,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. The first iteration starts immediately.
func (c *Cycle) Run(ctx context.Context) {
	c.logger.Info("trading cycle started",
		zap.String("symbol", c.cfg.Symbol),
		zap.String("timeframe", c.cfg.Timeframe),
		zap.Duration("interval", c.cfg.Interval),
		zap.String("strategy", c.strategy.Name()),
	)
	infrastructure.WalletBalance.WithLabelValues(c.cfg.Symbol).Set(c.ledger.Balance().InexactFloat64())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("trading cycle stopped", zap.String("symbol", c.cfg.Symbol))
			return
		case <-timer.C:
		}

		if err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
			infrastructure.CycleFailures.WithLabelValues(c.cfg.Symbol, failureReason(err)).Inc()
			fields := []zap.Field{
				zap.String("symbol", c.cfg.Symbol),
				zap.String("timeframe", c.cfg.Timeframe),
				zap.Time("at", c.now()),
				zap.Error(err),
			}
			var pe *PanicError
			if errors.As(err, &pe) {
				fields = append(fields, zap.ByteString("stack", pe.Stack))
			}
			c.logger.Error("trading cycle iteration failed", fields...)
		}
		timer.Reset(c.cfg.Interval)
	}
}

// RunOnce performs a single iteration. Any error returned before the ledger
// step leaves wallet and chart untouched. A panic in a collaborator is
// returned as *PanicError.
func (c *Cycle) RunOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		infrastructure.CycleLatency.WithLabelValues(c.cfg.Symbol).Observe(time.Since(start).Seconds())
	}()

	candles, err := c.source.FetchCandles(ctx, c.cfg.Symbol, c.cfg.Timeframe, c.cfg.CandleLimit)
	if err != nil {
		return &DataFetchError{Symbol: c.cfg.Symbol, Timeframe: c.cfg.Timeframe, Err: err}
	}

	rows, err := c.calc.Compute(candles)
	if err != nil {
		return &ComputeError{Err: err}
	}

	if len(rows) < 2 {
		return &InsufficientHistoryError{Rows: len(rows)}
	}
	prev, last := rows[len(rows)-2], rows[len(rows)-1]
	if !prev.Defined() || !last.Defined() {
		defined := 0
		for _, r := range []model.IndicatorRow{prev, last} {
			if r.Defined() {
				defined++
			}
		}
		return &InsufficientHistoryError{Rows: len(rows), Defined: defined}
	}

	c.window.Record(last.Timestamp.Unix(), last.Close.InexactFloat64())

	sig := c.strategy.Evaluate(prev, last)
	infrastructure.SignalsTotal.WithLabelValues(c.cfg.Symbol, sig.String()).Inc()

	tr, err := c.ledger.Apply(sig, last.Close, c.now())
	if err != nil {
		return err
	}
	c.afterTransition(sig, tr, last)
	return nil
}

func (c *Cycle) afterTransition(sig strategy.Signal, tr ledger.Transition, last model.IndicatorRow) {
	if tr.Kind == ledger.TransitionNone {
		if !sig.Has(strategy.ActionNone) {
			c.logger.Debug("signal not actionable in current state",
				zap.String("symbol", c.cfg.Symbol),
				zap.Stringer("signal", sig),
				zap.Bool("in_trade", c.ledger.InTrade()),
			)
		}
		return
	}
	infrastructure.TransitionsTotal.WithLabelValues(c.cfg.Symbol, tr.Kind.String()).Inc()
	infrastructure.WalletBalance.WithLabelValues(c.cfg.Symbol).Set(tr.Balance.InexactFloat64())

	event := model.TradeEvent{
		ID:      uuid.New().String(),
		Symbol:  c.ledger.Symbol(),
		Price:   last.Close,
		Balance: tr.Balance,
	}

	switch tr.Kind {
	case ledger.TransitionOpened:
		event.Type = model.EventOpen
		event.Time = tr.Position.OpenedAt
		c.logger.Info("signal BUY, position opened",
			zap.String("symbol", c.cfg.Symbol),
			zap.String("price", last.Close.String()),
			zap.Float64("rsi", last.RSI),
		)
	case ledger.TransitionClosed:
		event.Type = model.EventClose
		event.Time = tr.Trade.ClosedAt
		event.Trade = tr.Trade
		c.logger.Info("signal SELL, position closed",
			zap.String("symbol", c.cfg.Symbol),
			zap.String("price", last.Close.String()),
			zap.String("profit_pct", tr.Trade.ProfitPercent.StringFixed(2)),
			zap.String("balance", tr.Balance.StringFixed(2)),
		)
	}

	if c.events != nil {
		c.events.Submit(event)
	}
}
