package alerts

import (
	"context"
	"net/http"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
)

// WebhookChannel POSTs the alert as JSON.
type WebhookChannel struct {
	url     string
	timeout time.Duration
	client  *xhttp.Client
}

func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{url: url, timeout: timeout, client: newClient(timeout)}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, a models.Alert) models.DeliveryStatus {
	if w.url == "" {
		return notConfigured(w.Name())
	}
	ctx, cancel := withTimeout(ctx, w.timeout)
	defer cancel()

	err := w.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     w.url,
		Headers: map[string]string{"Content-Type": xhttp.ContentTypeJSON},
		Body:    a,
	}, nil)
	if err != nil {
		return failed(w.Name(), err)
	}
	return delivered(w.Name(), http.StatusOK)
}

var _ repository.AlertChannel = (*WebhookChannel)(nil)
