package repository

import (
	"context"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	pkgkafka "github.com/prateek8731/Market-Monitor/pkg/kafka"
)

// KafkaSignalPublisher publishes early-signal snapshots keyed by ticker.
type KafkaSignalPublisher struct {
	pub    pkgkafka.Publisher
	closer interface{ Close() error }
	topic  string
}

// NewKafkaSignalPublisher takes ownership of producer; Close closes it.
func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{pub: producer, closer: producer, topic: topic}
}

func newSignalPublisher(pub pkgkafka.Publisher, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{pub: pub, topic: topic}
}

func (p *KafkaSignalPublisher) PublishSignal(ctx context.Context, s *models.EarlySignals) error {
	if s == nil {
		return nil
	}
	return p.pub.Publish(ctx, p.topic, []byte(s.Ticker), s)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// NopSignalPublisher drops signals; used when Kafka is disabled.
type NopSignalPublisher struct{}

func (NopSignalPublisher) PublishSignal(context.Context, *models.EarlySignals) error { return nil }
func (NopSignalPublisher) Close() error                                          { return nil }

var (
	_ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)
	_ domrepo.SignalPublisher = NopSignalPublisher{}
)
