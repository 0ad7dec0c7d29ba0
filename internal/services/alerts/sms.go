package alerts

import (
	"context"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
)

// smsMaxRunes keeps a message within ten concatenated segments.
const smsMaxRunes = 1600

// TwilioConfig holds Twilio Messages API credentials.
type TwilioConfig struct {
	BaseURL string
	SID     string
	Token   string
	From    string
	To      string
}

// SMSChannel sends text messages through Twilio.
type SMSChannel struct {
	cfg     TwilioConfig
	timeout time.Duration
	client  *xhttp.Client
}

func NewSMSChannel(cfg TwilioConfig, timeout time.Duration) *SMSChannel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	return &SMSChannel{cfg: cfg, timeout: timeout, client: newClient(timeout)}
}

func (s *SMSChannel) Name() string { return "sms" }

func (s *SMSChannel) Send(ctx context.Context, a models.Alert) models.DeliveryStatus {
	if s.cfg.SID == "" || s.cfg.Token == "" || s.cfg.From == "" || s.cfg.To == "" {
		return notConfigured(s.Name())
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("To", s.cfg.To)
	form.Set("From", s.cfg.From)
	form.Set("Body", truncateRunes(Render(a), smsMaxRunes))

	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     s.cfg.BaseURL + "/2010-04-01/Accounts/" + url.PathEscape(s.cfg.SID) + "/Messages.json",
		Headers: map[string]string{"Content-Type": xhttp.ContentTypeForm},
		Body:    form,
		Auth:    &xhttp.BasicAuth{User: s.cfg.SID, Pass: s.cfg.Token},
	}, nil)
	if err != nil {
		return failed(s.Name(), err)
	}
	return delivered(s.Name(), http.StatusCreated)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

var _ repository.AlertChannel = (*SMSChannel)(nil)
