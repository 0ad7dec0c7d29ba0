package alerts

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
)

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
	To   []string
}

// EmailChannel sends plain-text mail over SMTP. smtp.SendMail upgrades to
// STARTTLS when the server offers it.
type EmailChannel struct {
	cfg     EmailConfig
	timeout time.Duration
	send    SendMailFunc
	now     func() time.Time
}

func NewEmailChannel(cfg EmailConfig, timeout time.Duration) *EmailChannel {
	return &EmailChannel{cfg: cfg, timeout: timeout, send: smtp.SendMail, now: time.Now}
}

// WithSender replaces the SMTP transport.
func (e *EmailChannel) WithSender(fn SendMailFunc) *EmailChannel {
	e.send = fn
	return e
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) configured() bool {
	return e.cfg.Host != "" && e.cfg.From != "" && len(e.cfg.To) > 0
}

func (e *EmailChannel) Send(ctx context.Context, a models.Alert) models.DeliveryStatus {
	if !e.configured() {
		return notConfigured(e.Name())
	}

	port := e.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(port))

	var auth smtp.Auth
	if e.cfg.User != "" {
		auth = smtp.PlainAuth("", e.cfg.User, e.cfg.Pass, e.cfg.Host)
	}

	msg := e.message(a)

	// smtp.SendMail has no context; bound it with the channel timeout instead.
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.send(addr, auth, e.cfg.From, e.cfg.To, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return failed(e.Name(), err)
		}
		return delivered(e.Name(), 250)
	case <-ctx.Done():
		return failed(e.Name(), fmt.Errorf("smtp send: %w", ctx.Err()))
	}
}

func (e *EmailChannel) message(a models.Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(a.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(Render(a), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

var _ repository.AlertChannel = (*EmailChannel)(nil)
