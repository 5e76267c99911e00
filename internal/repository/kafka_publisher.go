package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
)

// MessageProducer is the subset of pkg/kafka.Producer the publisher needs.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher emits one message per decision keyed by symbol, so a
// partition sees a symbol's decisions in order, plus one message per ranking.
type KafkaPublisher struct {
	producer    MessageProducer
	signalTopic string
	metaTopic   string
}

func NewKafkaPublisher(p MessageProducer, signalTopic, metaTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, signalTopic: signalTopic, metaTopic: metaTopic}
}

type decisionMessage struct {
	RunID    string          `json:"run_id"`
	Date     string          `json:"date"`
	Decision json.RawMessage `json:"decision"`
}

func (p *KafkaPublisher) PublishDecisions(ctx context.Context, doc models.SignalsDocument) error {
	for _, d := range doc.Signals {
		body, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode decision: %w", err)
		}
		msg := decisionMessage{RunID: doc.RunID, Date: doc.Date, Decision: body}
		if err := p.producer.Publish(ctx, p.signalTopic, []byte(d.Symbol), msg); err != nil {
			return fmt.Errorf("publish %s %s: %w", d.Symbol, d.Timeframe, err)
		}
	}
	return nil
}

func (p *KafkaPublisher) PublishMetaSignal(ctx context.Context, m models.MetaSignal) error {
	if err := p.producer.Publish(ctx, p.metaTopic, []byte(m.RecommendedPair), m); err != nil {
		return fmt.Errorf("publish meta signal: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)
