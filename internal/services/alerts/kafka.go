package alerts

import (
	"context"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/pkg/kafka"
)

// KafkaChannel publishes alerts to a topic keyed by ticker.
type KafkaChannel struct {
	pub     kafka.Publisher
	topic   string
	timeout time.Duration
}

// NewKafkaChannel returns an unconfigured channel when pub is nil.
func NewKafkaChannel(pub kafka.Publisher, topic string, timeout time.Duration) *KafkaChannel {
	return &KafkaChannel{pub: pub, topic: topic, timeout: timeout}
}

func (k *KafkaChannel) Name() string { return "kafka" }

func (k *KafkaChannel) Send(ctx context.Context, a models.Alert) models.DeliveryStatus {
	if k.pub == nil || k.topic == "" {
		return notConfigured(k.Name())
	}
	ctx, cancel := withTimeout(ctx, k.timeout)
	defer cancel()

	key := []byte(a.Ticker)
	if len(key) == 0 {
		key = []byte(a.Kind)
	}
	if err := k.pub.Publish(ctx, k.topic, key, a); err != nil {
		return failed(k.Name(), err)
	}
	return models.DeliveryStatus{Channel: k.Name(), Delivered: true}
}

var _ repository.AlertChannel = (*KafkaChannel)(nil)
