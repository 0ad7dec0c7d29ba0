package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	icache "github.com/prateek8731/Market-Monitor/internal/service/cache"
	"github.com/prateek8731/Market-Monitor/internal/services/alerts"
	pkgkafka "github.com/prateek8731/Market-Monitor/pkg/kafka"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
)

// AlertDispatcher consumes published early signals and alerts on every High band.
// A ticker is alerted at most once per cooldown.
type AlertDispatcher struct {
	topic    string
	notifier AlertNotifier
	cooldown time.Duration
	seen     *icache.TTLCache[float64]
	l        *applogger.Logger
}

func NewAlertDispatcher(topic string, notifier AlertNotifier, cooldown time.Duration, l *applogger.Logger) *AlertDispatcher {
	if l == nil {
		l = applogger.Nop()
	}
	return &AlertDispatcher{
		topic:    topic,
		notifier: notifier,
		cooldown: cooldown,
		seen:     icache.NewTTLCache[float64](10000),
		l:        l.With(applogger.String("component", "alert_dispatcher")),
	}
}

func (h *AlertDispatcher) Topic() string { return h.topic }

// Handle returns an error only when every configured channel failed, so the consumer retries.
func (h *AlertDispatcher) Handle(ctx context.Context, b []byte) error {
	var s models.EarlySignals
	if err := json.Unmarshal(b, &s); err != nil {
		// poison message; retrying cannot fix it
		h.l.Warn("drop undecodable signal", applogger.Error(err), applogger.Int("bytes", len(b)))
		return nil
	}
	if s.Composite.Band != models.BandHigh {
		return nil
	}
	if _, ok := h.seen.Get(s.Ticker); ok {
		h.l.Debug("alert suppressed by cooldown", applogger.Ticker(s.Ticker))
		return nil
	}

	statuses := h.notifier.SendAll(ctx, SignalAlert(&s))
	failed := 0
	for _, st := range statuses {
		switch {
		case st.Delivered:
			if h.cooldown > 0 {
				h.seen.Set(s.Ticker, s.Composite.Score, h.cooldown)
			}
			return nil
		case !alerts.IsNotConfigured(st):
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("alert %s: all %d configured channels failed", s.Ticker, failed)
	}
	return nil
}

// SignalAlert renders a composite signal as an alert payload.
func SignalAlert(s *models.EarlySignals) models.Alert {
	c := s.Composite
	fields := map[string]any{
		"score":        c.Score,
		"band":         string(c.Band),
		"insider_buy":  c.InsiderBuy,
		"insider_sell": c.InsiderSell,
		"news_buzz":    c.NewsBuzz,
	}
	if c.ModelPct != nil {
		fields["model_pct"] = *c.ModelPct
	}
	body := fmt.Sprintf("score %.2f: %d insider buys, %d sells, news buzz %d", c.Score, c.InsiderBuy, c.InsiderSell, c.NewsBuzz)
	if len(s.Errors) > 0 {
		body += fmt.Sprintf(" (%d signals degraded)", len(s.Errors))
	}
	return models.Alert{
		Kind:    "early_signal",
		Ticker:  s.Ticker,
		Subject: fmt.Sprintf("%s early signal %s", s.Ticker, c.Band),
		Body:    body,
		Fields:  fields,
	}
}

var _ pkgkafka.MessageHandler = (*AlertDispatcher)(nil)
