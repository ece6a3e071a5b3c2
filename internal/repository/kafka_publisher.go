package repository

import (
	"context"
	"fmt"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
)

// topicProducer is the part of pkg/kafka.Producer the publisher needs.
type topicProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher sends analysis events to one topic, keyed by ticker so every
// event for a ticker lands on the same partition.
type KafkaPublisher struct {
	producer topicProducer
	topic    string
}

var _ domrepo.AnalysisPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer topicProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev models.AnalysisEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Ticker), ev); err != nil {
		return fmt.Errorf("publish analysis %s: %w", ev.Ticker, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
