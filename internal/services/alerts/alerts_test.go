package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
)

func sampleAlert() models.Alert {
	return models.Alert{
		ID:      "a-1",
		Kind:    "early_signal",
		Ticker:  "NVDA",
		Subject: "NVDA composite score High",
		Body:    "score 12.0",
		Fields:  map[string]any{"score": 12.0, "band": "High"},
	}
}

func TestUnconfiguredChannels(t *testing.T) {
	chans := []repository.AlertChannel{
		NewWebhookChannel("", time.Second),
		NewEmailChannel(EmailConfig{}, time.Second),
		NewSMSChannel(TwilioConfig{}, time.Second),
		NewTelegramChannel("", "", "", time.Second),
		NewKafkaChannel(nil, "market.alerts", time.Second),
	}
	for _, ch := range chans {
		st := ch.Send(context.Background(), sampleAlert())
		assert.False(t, st.Delivered, ch.Name())
		assert.Equal(t, StatusNotConfigured, st.Error, ch.Name())
		assert.Equal(t, ch.Name(), st.Channel)
	}
}

func TestWebhookChannel(t *testing.T) {
	var got models.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	st := NewWebhookChannel(srv.URL, time.Second).Send(context.Background(), sampleAlert())
	assert.True(t, st.Delivered)
	assert.Equal(t, "NVDA", got.Ticker)
	assert.Equal(t, "High", got.Fields["band"])
}

func TestWebhookChannel_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	st := NewWebhookChannel(srv.URL, time.Second).Send(context.Background(), sampleAlert())
	assert.False(t, st.Delivered)
	assert.Equal(t, http.StatusBadGateway, st.Status)
	assert.Contains(t, st.Error, "down")
}

func TestSMSChannel_TwilioForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001", r.PostForm.Get("To"))
		assert.Equal(t, "+15550002", r.PostForm.Get("From"))
		assert.True(t, strings.HasPrefix(r.PostForm.Get("Body"), "NVDA composite score High"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	ch := NewSMSChannel(TwilioConfig{BaseURL: srv.URL, SID: "AC123", Token: "secret", From: "+15550002", To: "+15550001"}, time.Second)
	st := ch.Send(context.Background(), sampleAlert())
	assert.True(t, st.Delivered, st.Error)
}

func TestTelegramChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["chat_id"])
		if strings.Contains(body["text"].(string), "reject") {
			_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ch := NewTelegramChannel(srv.URL, "TOKEN", "42", time.Second)
	assert.True(t, ch.Send(context.Background(), sampleAlert()).Delivered)

	a := sampleAlert()
	a.Body = "reject me"
	st := ch.Send(context.Background(), a)
	assert.False(t, st.Delivered)
	assert.Contains(t, st.Error, "chat not found")
}

func TestEmailChannel_BuildsMessage(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	ch := NewEmailChannel(EmailConfig{Host: "smtp.example.com", Port: 2525, From: "bot@example.com", To: []string{"ops@example.com"}}, time.Second).
		WithSender(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr = addr
			gotMsg = msg
			assert.Equal(t, "bot@example.com", from)
			assert.Equal(t, []string{"ops@example.com"}, to)
			return nil
		})

	a := sampleAlert()
	a.Subject = "line1\r\nBcc: evil@example.com"
	st := ch.Send(context.Background(), a)
	require.True(t, st.Delivered)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: line1  Bcc: evil@example.com\r\n")
	assert.Contains(t, msg, "band: High")
}

func TestEmailChannel_SendFailureAndTimeout(t *testing.T) {
	cfg := EmailConfig{Host: "smtp.example.com", From: "a@b.c", To: []string{"d@e.f"}}
	st := NewEmailChannel(cfg, time.Second).
		WithSender(func(string, smtp.Auth, string, []string, []byte) error { return errors.New("535 auth failed") }).
		Send(context.Background(), sampleAlert())
	assert.False(t, st.Delivered)
	assert.Contains(t, st.Error, "535")

	block := make(chan struct{})
	defer close(block)
	st = NewEmailChannel(cfg, 20*time.Millisecond).
		WithSender(func(string, smtp.Auth, string, []string, []byte) error { <-block; return nil }).
		Send(context.Background(), sampleAlert())
	assert.False(t, st.Delivered)
	assert.Contains(t, st.Error, "deadline")
}

type recordingPublisher struct {
	mu    sync.Mutex
	topic string
	key   []byte
	value interface{}
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestKafkaChannel(t *testing.T) {
	pub := &recordingPublisher{}
	st := NewKafkaChannel(pub, "market.alerts", time.Second).Send(context.Background(), sampleAlert())
	assert.True(t, st.Delivered)
	assert.Equal(t, "market.alerts", pub.topic)
	assert.Equal(t, "NVDA", string(pub.key))

	pub.err = errors.New("broker down")
	st = NewKafkaChannel(pub, "market.alerts", time.Second).Send(context.Background(), sampleAlert())
	assert.False(t, st.Delivered)
}

type scriptedChannel struct {
	name    string
	results []models.DeliveryStatus
	calls   int32
}

func (s *scriptedChannel) Name() string { return s.name }

func (s *scriptedChannel) Send(context.Context, models.Alert) models.DeliveryStatus {
	n := atomic.AddInt32(&s.calls, 1)
	i := int(n) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	st := s.results[i]
	st.Channel = s.name
	return st
}

type alertMetrics struct {
	repository.Metrics
	mu      sync.Mutex
	results map[string]bool
}

func (m *alertMetrics) RecordAlert(channel string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[channel] = ok
}

func TestMultiChannel_FanOut(t *testing.T) {
	ok := &scriptedChannel{name: "ok", results: []models.DeliveryStatus{{Delivered: true}}}
	bad := &scriptedChannel{name: "bad", results: []models.DeliveryStatus{{Error: "boom", Status: 500}}}
	off := &scriptedChannel{name: "off", results: []models.DeliveryStatus{{Error: StatusNotConfigured}}}
	m := &alertMetrics{results: map[string]bool{}}

	multi := NewMultiChannel(nil, m, ok, bad, off)
	statuses := multi.SendAll(context.Background(), models.Alert{Subject: "x"})
	require.Len(t, statuses, 3)
	assert.Equal(t, "ok", statuses[0].Channel)
	assert.True(t, statuses[0].Delivered)
	assert.False(t, statuses[1].Delivered)
	assert.True(t, IsNotConfigured(statuses[2]))
	assert.Equal(t, map[string]bool{"ok": true, "bad": false}, m.results)

	assert.True(t, multi.Send(context.Background(), models.Alert{}).Delivered)
	assert.False(t, NewMultiChannel(nil, nil, bad).Send(context.Background(), models.Alert{}).Delivered)
}

func TestRetryChannel(t *testing.T) {
	flaky := &scriptedChannel{name: "flaky", results: []models.DeliveryStatus{
		{Error: "503", Status: 503},
		{Error: "timeout"},
		{Delivered: true},
	}}
	st := NewRetryChannel(flaky, 2, time.Millisecond).Send(context.Background(), models.Alert{})
	assert.True(t, st.Delivered)
	assert.Equal(t, int32(3), flaky.calls)

	rejected := &scriptedChannel{name: "rejected", results: []models.DeliveryStatus{{Error: "bad request", Status: 400}}}
	st = NewRetryChannel(rejected, 5, time.Millisecond).Send(context.Background(), models.Alert{})
	assert.False(t, st.Delivered)
	assert.Equal(t, int32(1), rejected.calls, "4xx is not retried")

	off := &scriptedChannel{name: "off", results: []models.DeliveryStatus{{Error: StatusNotConfigured}}}
	_ = NewRetryChannel(off, 5, time.Millisecond).Send(context.Background(), models.Alert{})
	assert.Equal(t, int32(1), off.calls)
}

func TestRender(t *testing.T) {
	out := Render(sampleAlert())
	assert.Equal(t, "NVDA composite score High\nscore 12.0\n\nband: High\nscore: 12", out)
}
