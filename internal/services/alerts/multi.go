package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/pkg/logger"
)

// MultiChannel fans an alert out to every channel concurrently.
type MultiChannel struct {
	channels []repository.AlertChannel
	metrics  repository.Metrics
	log      *logger.Logger
}

func NewMultiChannel(log *logger.Logger, metrics repository.Metrics, channels ...repository.AlertChannel) *MultiChannel {
	if log == nil {
		log = logger.Nop()
	}
	return &MultiChannel{channels: channels, metrics: metrics, log: log}
}

func (m *MultiChannel) Name() string { return "multi" }

// Send satisfies AlertChannel; Delivered is true when any channel delivered.
func (m *MultiChannel) Send(ctx context.Context, a models.Alert) models.DeliveryStatus {
	out := models.DeliveryStatus{Channel: m.Name()}
	for _, st := range m.SendAll(ctx, a) {
		if st.Delivered {
			out.Delivered = true
		}
	}
	if !out.Delivered {
		out.Error = "no channel delivered"
	}
	return out
}

// SendAll returns one status per channel in registration order.
func (m *MultiChannel) SendAll(ctx context.Context, a models.Alert) []models.DeliveryStatus {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	statuses := make([]models.DeliveryStatus, len(m.channels))
	var wg sync.WaitGroup
	for i, ch := range m.channels {
		wg.Add(1)
		go func(i int, ch repository.AlertChannel) {
			defer wg.Done()
			statuses[i] = ch.Send(ctx, a)
		}(i, ch)
	}
	wg.Wait()

	for _, st := range statuses {
		if IsNotConfigured(st) {
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordAlert(st.Channel, st.Delivered)
		}
		if !st.Delivered {
			m.log.Warn("alert not delivered",
				logger.String("alert_id", a.ID),
				logger.String("channel", st.Channel),
				logger.Int("status", st.Status),
				logger.String("error", st.Error),
			)
		}
	}
	return statuses
}

// RetryChannel retries failed sends with exponential backoff. Unconfigured
// results are returned immediately.
type RetryChannel struct {
	inner    repository.AlertChannel
	attempts int
	backoff  time.Duration
}

// NewRetryChannel makes up to retries+1 attempts.
func NewRetryChannel(inner repository.AlertChannel, retries int, backoff time.Duration) *RetryChannel {
	if retries < 0 {
		retries = 0
	}
	return &RetryChannel{inner: inner, attempts: retries + 1, backoff: backoff}
}

func (r *RetryChannel) Name() string { return r.inner.Name() }

func (r *RetryChannel) Send(ctx context.Context, a models.Alert) models.DeliveryStatus {
	var st models.DeliveryStatus
	wait := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		st = r.inner.Send(ctx, a)
		if st.Delivered || IsNotConfigured(st) || !retryable(st) || attempt == r.attempts {
			return st
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			st.Error = ctx.Err().Error()
			return st
		}
		wait *= 2
	}
	return st
}

// retryable rejects client errors other than throttling.
func retryable(st models.DeliveryStatus) bool {
	if st.Status == 0 || st.Status == 429 {
		return true
	}
	return st.Status >= 500
}

var (
	_ repository.AlertChannel = (*MultiChannel)(nil)
	_ repository.AlertChannel = (*RetryChannel)(nil)
)
