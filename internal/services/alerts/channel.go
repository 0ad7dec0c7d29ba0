package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
)

// StatusNotConfigured is reported by channels missing their credentials.
const StatusNotConfigured = "not configured"

func notConfigured(channel string) models.DeliveryStatus {
	return models.DeliveryStatus{Channel: channel, Error: StatusNotConfigured}
}

// IsNotConfigured reports whether s came from an unconfigured channel.
func IsNotConfigured(s models.DeliveryStatus) bool {
	return !s.Delivered && s.Error == StatusNotConfigured
}

func delivered(channel string, code int) models.DeliveryStatus {
	return models.DeliveryStatus{Channel: channel, Delivered: true, Status: code}
}

// failed converts a transport error into a status, keeping the HTTP code when there is one.
func failed(channel string, err error) models.DeliveryStatus {
	st := models.DeliveryStatus{Channel: channel, Error: err.Error()}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		st.Status = se.Code
	}
	return st
}

func newClient(timeout time.Duration) *xhttp.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("market-monitor-alerts/1.0"))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Render formats an alert as plain text for human channels.
func Render(a models.Alert) string {
	var b strings.Builder
	b.WriteString(a.Subject)
	if a.Body != "" {
		b.WriteString("\n")
		b.WriteString(a.Body)
	}
	if len(a.Fields) > 0 {
		keys := make([]string, 0, len(a.Fields))
		for k := range a.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %v", k, a.Fields[k])
		}
	}
	return b.String()
}
