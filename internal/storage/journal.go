package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"
)

const journalTable = "paper_trades"

var journalColumns = []string{
	"id", "symbol", "opened_at", "closed_at",
	"open_price", "close_price", "profit_value", "profit_percent", "balance",
}

// copier is satisfied by *pgxpool.Pool.
type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// TradeJournal archives closed trades to Postgres in batches. It is write
// only: nothing is ever read back into the ledger.
type TradeJournal struct {
	db        copier
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	buffer [][]interface{}
}

func NewTradeJournal(db copier, logger *zap.Logger, interval time.Duration, batchSize int) *TradeJournal {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &TradeJournal{
		db:        db,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		buffer:    make([][]interface{}, 0, batchSize),
	}
}

func (j *TradeJournal) Name() string { return "journal" }

// Handle buffers close events; open events carry no settled trade and are skipped.
func (j *TradeJournal) Handle(ctx context.Context, event model.TradeEvent) error {
	if event.Type != model.EventClose || event.Trade == nil {
		return nil
	}
	t := event.Trade
	row := []interface{}{
		event.ID,
		t.Symbol,
		t.OpenedAt,
		t.ClosedAt,
		t.OpenPrice.String(),
		t.ClosePrice.String(),
		t.ProfitValue.String(),
		t.ProfitPercent.StringFixed(4),
		event.Balance.String(),
	}

	j.mu.Lock()
	j.buffer = append(j.buffer, row)
	full := len(j.buffer) >= j.batchSize
	j.mu.Unlock()

	if full {
		return j.Flush(ctx)
	}
	return nil
}

// Run flushes on every tick and once more when ctx is cancelled.
func (j *TradeJournal) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := j.Flush(flushCtx); err != nil {
				j.logger.Error("final journal flush failed", zap.Int("pending", j.Pending()), zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := j.Flush(ctx); err != nil {
				j.logger.Error("journal flush failed", zap.Int("pending", j.Pending()), zap.Error(err))
			}
		}
	}
}

func (j *TradeJournal) Flush(ctx context.Context) error {
	j.mu.Lock()
	if len(j.buffer) == 0 {
		j.mu.Unlock()
		return nil
	}
	rows := j.buffer
	j.buffer = make([][]interface{}, 0, j.batchSize)
	j.mu.Unlock()

	n, err := j.db.CopyFrom(ctx, pgx.Identifier{journalTable}, journalColumns, pgx.CopyFromRows(rows))
	if err != nil {
		j.mu.Lock()
		j.buffer = append(rows, j.buffer...)
		j.mu.Unlock()
		return fmt.Errorf("copy %d trades: %w", len(rows), err)
	}

	infrastructure.DBInsertRate.WithLabelValues(journalTable).Add(float64(n))
	j.logger.Debug("journal flushed", zap.Int64("rows", n))
	return nil
}

// Pending reports buffered, not yet written rows.
func (j *TradeJournal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.buffer)
}
