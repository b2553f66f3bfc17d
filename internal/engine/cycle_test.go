package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"paper-trader/internal/chart"
	"paper-trader/internal/indicator"
	"paper-trader/internal/infrastructure"
	"paper-trader/internal/ledger"
	"paper-trader/internal/model"
	"paper-trader/internal/strategy"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockCandleSource struct {
	mock.Mock
}

func (m *MockCandleSource) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.KLine, error) {
	args := m.Called(ctx, symbol, timeframe, limit)
	candles, _ := args.Get(0).([]model.KLine)
	return candles, args.Error(1)
}

type MockCalculator struct {
	mock.Mock
}

func (m *MockCalculator) Compute(candles []model.KLine) ([]model.IndicatorRow, error) {
	args := m.Called(candles)
	rows, _ := args.Get(0).([]model.IndicatorRow)
	return rows, args.Error(1)
}

type recordingSubmitter struct {
	mu     sync.Mutex
	events []model.TradeEvent
}

func (r *recordingSubmitter) Submit(event model.TradeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

var (
	testStart = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	fixedNow  = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
)

type fixture struct {
	source *MockCandleSource
	calc   *MockCalculator
	ledger *ledger.Ledger
	window *chart.Window
	events *recordingSubmitter
	cycle  *Cycle
}

func newFixture(interval time.Duration) *fixture {
	f := &fixture{
		source: &MockCandleSource{},
		calc:   &MockCalculator{},
		ledger: ledger.NewLedger("BTC/USDT", decimal.NewFromInt(10000), 0),
		window: chart.NewWindow(chart.DefaultCapacity),
		events: &recordingSubmitter{},
	}
	f.cycle = NewCycle(
		CycleConfig{Symbol: "BTC/USDT", Timeframe: "1m", CandleLimit: 100, Interval: interval},
		f.source,
		f.calc,
		strategy.NewRSIMACDStrategy(strategy.DefaultOversold, strategy.DefaultOverbought),
		f.ledger,
		f.window,
		f.events,
		zap.NewNop(),
	)
	f.cycle.now = func() time.Time { return fixedNow }
	return f
}

func indicatorRow(minute int, close, rsi, macd, signal float64) model.IndicatorRow {
	return model.IndicatorRow{
		Timestamp:  testStart.Add(time.Duration(minute) * time.Minute),
		Close:      decimal.NewFromFloat(close),
		RSI:        rsi,
		MACD:       macd,
		MACDSignal: signal,
	}
}

// expectRows wires the mocks so one iteration sees the given rows.
func (f *fixture) expectRows(rows ...model.IndicatorRow) {
	candles := []model.KLine{{Symbol: "BTCUSDT"}}
	f.source.On("FetchCandles", mock.Anything, "BTC/USDT", "1m", 100).Return(candles, nil).Once()
	f.calc.On("Compute", candles).Return(rows, nil).Once()
}

func (f *fixture) openAt(t *testing.T, price float64) {
	_, err := f.ledger.Apply(strategy.Signal{Buy: true}, decimal.NewFromFloat(price), testStart)
	require.NoError(t, err)
}

func TestCycle_BuyOpensPosition(t *testing.T) {
	f := newFixture(time.Minute)
	f.expectRows(
		indicatorRow(0, 99, 40, -1, -0.5),
		indicatorRow(1, 100, 30, 0.2, 0.1),
	)

	require.NoError(t, f.cycle.RunOnce(context.Background()))

	w := f.ledger.Snapshot()
	require.NotNil(t, w.Position)
	assert.True(t, w.Position.OpenPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, fixedNow, w.Position.OpenedAt)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(10000)))

	assert.Equal(t, []model.PricePoint{{Time: testStart.Add(time.Minute).Unix(), Value: 100}}, f.window.Snapshot())

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, model.EventOpen, ev.Type)
	assert.NotEmpty(t, ev.ID)
	assert.Nil(t, ev.Trade)
	f.source.AssertExpectations(t)
	f.calc.AssertExpectations(t)
}

func TestCycle_SellClosesPosition(t *testing.T) {
	f := newFixture(time.Minute)
	f.openAt(t, 100)
	f.expectRows(
		indicatorRow(0, 105, 60, 1, 0.5),
		indicatorRow(1, 110, 70, 1.2, 0.5),
	)

	require.NoError(t, f.cycle.RunOnce(context.Background()))

	w := f.ledger.Snapshot()
	assert.Nil(t, w.Position)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(10010)))
	require.Len(t, w.History, 1)
	assert.Equal(t, "10.00", w.History[0].ProfitPercent.StringFixed(2))
	assert.Equal(t, fixedNow, w.History[0].ClosedAt)

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, model.EventClose, ev.Type)
	require.NotNil(t, ev.Trade)
	assert.True(t, ev.Balance.Equal(decimal.NewFromInt(10010)))
}

func TestCycle_NoSignalNoMutation(t *testing.T) {
	f := newFixture(time.Minute)
	f.expectRows(
		indicatorRow(0, 100, 50, 1, 0.5),
		indicatorRow(1, 101, 50, 1.1, 0.5),
	)
	before := f.ledger.Snapshot()

	require.NoError(t, f.cycle.RunOnce(context.Background()))

	assert.Equal(t, before, f.ledger.Snapshot())
	assert.Empty(t, f.events.events)
	assert.Equal(t, 1, f.window.Len(), "chart still records the price")
}

func TestCycle_BuyIgnoredWhileOpen(t *testing.T) {
	f := newFixture(time.Minute)
	f.openAt(t, 100)
	f.expectRows(
		indicatorRow(0, 90, 40, -1, -0.5),
		indicatorRow(1, 95, 30, 0.2, 0.1),
	)
	before := f.ledger.Snapshot()

	require.NoError(t, f.cycle.RunOnce(context.Background()))

	assert.Equal(t, before, f.ledger.Snapshot())
	assert.Empty(t, f.events.events)
}

func TestCycle_DuplicateCandleNotRecordedTwice(t *testing.T) {
	f := newFixture(time.Minute)
	rows := []model.IndicatorRow{
		indicatorRow(0, 100, 50, 1, 0.5),
		indicatorRow(1, 101, 50, 1.1, 0.5),
	}
	f.expectRows(rows...)
	f.expectRows(rows...)

	require.NoError(t, f.cycle.RunOnce(context.Background()))
	require.NoError(t, f.cycle.RunOnce(context.Background()))

	assert.Equal(t, 1, f.window.Len())
}

func TestCycle_Failures(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name  string
		setup func(f *fixture)
		check func(t *testing.T, err error)
	}{
		{
			name: "fetch error",
			setup: func(f *fixture) {
				f.source.On("FetchCandles", mock.Anything, "BTC/USDT", "1m", 100).Return(nil, errors.New("connection refused")).Once()
			},
			check: func(t *testing.T, err error) {
				var fe *DataFetchError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, "BTC/USDT", fe.Symbol)
				assert.Equal(t, "1m", fe.Timeframe)
				assert.Equal(t, "fetch", failureReason(err))
			},
		},
		{
			name: "compute error",
			setup: func(f *fixture) {
				f.source.On("FetchCandles", mock.Anything, "BTC/USDT", "1m", 100).Return([]model.KLine{{}}, nil).Once()
				f.calc.On("Compute", mock.Anything).Return(nil, indicator.ErrDegenerateInput).Once()
			},
			check: func(t *testing.T, err error) {
				var ce *ComputeError
				require.True(t, errors.As(err, &ce))
				assert.True(t, errors.Is(err, indicator.ErrDegenerateInput))
				assert.Equal(t, "compute", failureReason(err))
			},
		},
		{
			name: "single row",
			setup: func(f *fixture) {
				f.expectRows(indicatorRow(0, 100, 30, 0.2, 0.1))
			},
			check: func(t *testing.T, err error) {
				var he *InsufficientHistoryError
				require.True(t, errors.As(err, &he))
				assert.Equal(t, 1, he.Rows)
				assert.Equal(t, "history", failureReason(err))
			},
		},
		{
			name: "warm-up rows",
			setup: func(f *fixture) {
				f.expectRows(
					indicatorRow(0, 100, nan, nan, nan),
					indicatorRow(1, 100, 30, 0.2, 0.1),
				)
			},
			check: func(t *testing.T, err error) {
				var he *InsufficientHistoryError
				require.True(t, errors.As(err, &he))
				assert.Equal(t, 2, he.Rows)
				assert.Equal(t, 1, he.Defined)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(time.Minute)
			tt.setup(f)
			before := f.ledger.Snapshot()

			err := f.cycle.RunOnce(context.Background())
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, before, f.ledger.Snapshot())
			assert.Empty(t, f.window.Snapshot())
			assert.Empty(t, f.events.events)
		})
	}
}

func TestCycle_RunSurvivesRepeatedFetchFailures(t *testing.T) {
	f := newFixture(5 * time.Millisecond)
	f.openAt(t, 100)
	f.window.Record(testStart.Unix(), 100)
	walletBefore := f.ledger.Snapshot()
	chartBefore := f.window.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	f.source.On("FetchCandles", mock.Anything, "BTC/USDT", "1m", 100).
		Return(nil, errors.New("exchange unavailable")).
		Run(func(mock.Arguments) {
			if atomic.AddInt32(&calls, 1) == 3 {
				cancel()
			}
		})

	done := make(chan struct{})
	go func() {
		f.cycle.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not stop after cancellation")
	}

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
	assert.Equal(t, walletBefore, f.ledger.Snapshot())
	assert.Equal(t, chartBefore, f.window.Snapshot())
	f.calc.AssertNotCalled(t, "Compute", mock.Anything)
}

type seriesSource struct {
	prices []float64
}

func (s *seriesSource) FetchCandles(_ context.Context, symbol, timeframe string, limit int) ([]model.KLine, error) {
	out := make([]model.KLine, 0, limit)
	for i, p := range s.prices {
		out = append(out, model.KLine{
			Symbol:    symbol,
			Period:    timeframe,
			Close:     decimal.NewFromFloat(p),
			Timestamp: testStart.Add(time.Duration(i) * time.Minute),
		})
	}
	return out, nil
}

func TestCycle_WithRealIndicators(t *testing.T) {
	prices := make([]float64, 100)
	for i := range prices {
		prices[i] = 100 + 5*math.Sin(float64(i)/4)
	}
	calc, err := indicator.NewCalculator(indicator.DefaultParams())
	require.NoError(t, err)

	l := ledger.NewLedger("BTC/USDT", decimal.NewFromInt(10000), 0)
	w := chart.NewWindow(chart.DefaultCapacity)
	c := NewCycle(
		CycleConfig{Symbol: "BTC/USDT", Timeframe: "1m", CandleLimit: 100, Interval: time.Minute},
		&seriesSource{prices: prices},
		calc,
		strategy.NewRSIMACDStrategy(strategy.DefaultOversold, strategy.DefaultOverbought),
		l, w, nil, zap.NewNop(),
	)

	require.NoError(t, c.RunOnce(context.Background()))
	points := w.Snapshot()
	require.Len(t, points, 1)
	assert.Equal(t, testStart.Add(99*time.Minute).Unix(), points[0].Time)
	assert.InDelta(t, prices[99], points[0].Value, 1e-9)
}

func TestCycle_RecoversCollaboratorPanic(t *testing.T) {
	f := newFixture(time.Minute)
	f.source.On("FetchCandles", mock.Anything, "BTC/USDT", "1m", 100).Return([]model.KLine{{}}, nil).Once()
	f.calc.On("Compute", mock.Anything).Panic("index out of range").Once()
	before := f.ledger.Snapshot()

	var err error
	require.NotPanics(t, func() { err = f.cycle.RunOnce(context.Background()) })

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "index out of range", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, "panic", failureReason(err))
	assert.Equal(t, before, f.ledger.Snapshot())
	assert.Empty(t, f.window.Snapshot())
}

func TestCycle_RunKeepsGoingAfterPanic(t *testing.T) {
	f := newFixture(5 * time.Millisecond)
	f.calc.On("Compute", mock.Anything).Panic("bad row")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	f.source.On("FetchCandles", mock.Anything, "BTC/USDT", "1m", 100).
		Return([]model.KLine{{}}, nil).
		Run(func(mock.Arguments) {
			if atomic.AddInt32(&calls, 1) == 2 {
				cancel()
			}
		})

	before := testutil.ToFloat64(infrastructure.CycleFailures.WithLabelValues("BTC/USDT", "panic"))

	done := make(chan struct{})
	go func() {
		f.cycle.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not stop after cancellation")
	}

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	after := testutil.ToFloat64(infrastructure.CycleFailures.WithLabelValues("BTC/USDT", "panic"))
	assert.GreaterOrEqual(t, after-before, 1.0)
}

func TestCycle_CancelledFetchIsNotAFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	f := newFixture(time.Minute)
	f.cycle.logger = zap.New(core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.source.On("FetchCandles", mock.Anything, "BTC/USDT", "1m", 100).
		Return(nil, context.Canceled).
		Run(func(mock.Arguments) { cancel() }).
		Once()

	before := testutil.ToFloat64(infrastructure.CycleFailures.WithLabelValues("BTC/USDT", "fetch"))

	done := make(chan struct{})
	go func() {
		f.cycle.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not stop after cancellation")
	}

	after := testutil.ToFloat64(infrastructure.CycleFailures.WithLabelValues("BTC/USDT", "fetch"))
	assert.Equal(t, before, after)
	assert.Equal(t, 0, logs.Len(), "shutdown is not logged as an error")
	f.source.AssertExpectations(t)
}

func TestCycle_LogsIgnoredSignal(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(time.Minute)
	f.cycle.logger = zap.New(core)
	f.openAt(t, 100)
	f.expectRows(
		indicatorRow(0, 90, 40, -1, -0.5),
		indicatorRow(1, 95, 30, 0.2, 0.1),
	)

	require.NoError(t, f.cycle.RunOnce(context.Background()))

	entries := logs.FilterMessage("signal not actionable in current state").All()
	require.Len(t, entries, 1)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "buy", ctxMap["signal"])
	assert.Equal(t, true, ctxMap["in_trade"])
}
