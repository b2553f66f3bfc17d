package engine

import (
	"context"
	"sync"
	"time"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"

	"go.uber.org/zap"
)

const drainTimeout = 5 * time.Second

// Sink consumes committed trade events (push gateway, NATS, journal).
type Sink interface {
	Name() string
	Handle(ctx context.Context, event model.TradeEvent) error
}

// WorkerPool delivers trade events to every sink off the polling goroutine.
type WorkerPool struct {
	jobQueue    chan model.TradeEvent
	workerCount int
	sinks       []Sink
	logger      *zap.Logger
	wg          sync.WaitGroup
}

func NewWorkerPool(workerCount int, bufferSize int, logger *zap.Logger, sinks ...Sink) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		jobQueue:    make(chan model.TradeEvent, bufferSize),
		workerCount: workerCount,
		sinks:       sinks,
		logger:      logger,
	}
}

func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("started worker pool", zap.Int("workers", p.workerCount), zap.Int("sinks", len(p.sinks)))
}

// Wait blocks until every worker has returned after ctx cancellation.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) Submit(event model.TradeEvent) {
	select {
	case p.jobQueue <- event:
	default:
		infrastructure.EventsDropped.WithLabelValues("queue").Inc()
		p.logger.Warn("worker pool job queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.drain(id)
			return
		case event := <-p.jobQueue:
			if ctx.Err() != nil {
				p.drain(id, event)
				return
			}
			p.process(ctx, id, event)
		}
	}
}

// drain delivers whatever is still queued after cancellation so trades
// committed right before shutdown still reach the sinks.
func (p *WorkerPool) drain(id int, pending ...model.TradeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for _, event := range pending {
		p.process(ctx, id, event)
	}
	for {
		select {
		case event := <-p.jobQueue:
			p.process(ctx, id, event)
		default:
			return
		}
	}
}

func (p *WorkerPool) process(ctx context.Context, workerID int, event model.TradeEvent) {
	for _, sink := range p.sinks {
		if err := sink.Handle(ctx, event); err != nil {
			infrastructure.EventsDropped.WithLabelValues(sink.Name()).Inc()
			p.logger.Error("sink failed to handle event",
				zap.Int("worker_id", workerID),
				zap.String("sink", sink.Name()),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}
}
