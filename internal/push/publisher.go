package push

import (
	"context"
	"encoding/json"
	"fmt"

	"paper-trader/internal/connector"
	"paper-trader/internal/model"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// jetStreamPublisher is the subset of nats.JetStreamContext the publisher needs.
type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher forwards trade events to JetStream under paper.trade.<SYMBOL>.
type NATSPublisher struct {
	js     jetStreamPublisher
	logger *zap.Logger
}

func NewNATSPublisher(js jetStreamPublisher, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{js: js, logger: logger}
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Handle(ctx context.Context, event model.TradeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal trade event: %w", err)
	}

	subject := Subject(event.Symbol)
	ack, err := p.js.Publish(subject, data, nats.MsgId(event.ID), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published trade event",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.Uint64("seq", ack.Sequence),
	)
	return nil
}

func Subject(symbol string) string {
	return "paper.trade." + connector.NormalizeSymbol(symbol)
}
