package app

import (
	"context"
	"fmt"

	"paper-trader/internal/chart"
	"paper-trader/internal/connector"
	"paper-trader/internal/engine"
	"paper-trader/internal/indicator"
	"paper-trader/internal/ledger"
	"paper-trader/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// buildEngine assembles ledger, window and polling cycle from config.
// Dispatcher must already be set.
func (a *App) buildEngine() error {
	cfg := a.Config

	source, err := connector.New(cfg.Exchange, cfg.ExchangeURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create market data source: %w", err)
	}

	calc, err := indicator.NewCalculator(indicator.Params{
		RSIPeriod:  cfg.RSIPeriod,
		MACDFast:   cfg.MACDFast,
		MACDSlow:   cfg.MACDSlow,
		MACDSignal: cfg.MACDSignal,
	})
	if err != nil {
		return fmt.Errorf("invalid indicator params: %w", err)
	}
	// The cycle needs the last two rows defined.
	if minCandles := calc.Params().Warmup() + 2; cfg.CandleLimit < minCandles {
		return fmt.Errorf("CANDLE_LIMIT %d is below the %d candles the indicators need", cfg.CandleLimit, minCandles)
	}

	strat, err := strategy.NewStrategy(cfg.Strategy, cfg.StrategyConfig())
	if err != nil {
		return fmt.Errorf("failed to create strategy: %w", err)
	}

	a.Ledger = ledger.NewLedger(cfg.Symbol, decimal.NewFromFloat(cfg.InitialBalance), cfg.HistoryLimit)
	a.Window = chart.NewWindow(cfg.ChartCapacity)

	var events engine.EventSubmitter
	if a.Dispatcher != nil {
		events = a.Dispatcher
	}

	a.Cycle = engine.NewCycle(
		engine.CycleConfig{
			Symbol:      cfg.Symbol,
			Timeframe:   cfg.Timeframe,
			CandleLimit: cfg.CandleLimit,
			Interval:    cfg.PollInterval,
		},
		source, calc, strat, a.Ledger, a.Window, events, a.Logger,
	)

	a.Logger.Info("trading engine assembled",
		zap.String("exchange", cfg.Exchange),
		zap.String("symbol", a.Ledger.Symbol()),
		zap.String("strategy", strat.Name()),
		zap.Int("candle_limit", cfg.CandleLimit),
		zap.Int("chart_capacity", a.Window.Capacity()),
	)
	return nil
}

// startTradingCycle launches dispatcher, journal and polling loop. The cycle
// and dispatcher stop on ctx; the journal has its own context so it can
// take the dispatcher's last events before its final flush.
func (a *App) startTradingCycle(ctx context.Context) {
	a.Dispatcher.Start(ctx)

	if a.Journal != nil {
		var journalCtx context.Context
		journalCtx, a.journalCancel = context.WithCancel(context.WithoutCancel(ctx))
		a.journalWG.Add(1)
		go func() {
			defer a.journalWG.Done()
			a.Journal.Run(journalCtx)
		}()
	}

	a.cycleWG.Add(1)
	go func() {
		defer a.cycleWG.Done()
		a.Cycle.Run(ctx)
	}()
}

// stopTradingCycle cancels the engine and waits in dependency order: cycle
// (no new events), dispatcher (queue drained), journal (final flush).
func (a *App) stopTradingCycle() {
	if a.cancel != nil {
		a.cancel()
	}
	a.cycleWG.Wait()
	a.Dispatcher.Wait()

	if a.journalCancel != nil {
		a.journalCancel()
	}
	a.journalWG.Wait()
}
