package alerts

import (
	"context"
	"net/http"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
)

// TelegramChannel posts to a chat through the Bot API.
type TelegramChannel struct {
	baseURL string
	token   string
	chatID  string
	timeout time.Duration
	client  *xhttp.Client
}

func NewTelegramChannel(baseURL, token, chatID string, timeout time.Duration) *TelegramChannel {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramChannel{baseURL: baseURL, token: token, chatID: chatID, timeout: timeout, client: newClient(timeout)}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Send(ctx context.Context, a models.Alert) models.DeliveryStatus {
	if t.token == "" || t.chatID == "" {
		return notConfigured(t.Name())
	}
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    t.baseURL + "/bot" + t.token + "/sendMessage",
		Body: map[string]interface{}{
			"chat_id":                  t.chatID,
			"text":                     Render(a),
			"disable_web_page_preview": true,
		},
	}, &resp)
	if err != nil {
		return failed(t.Name(), err)
	}
	if !resp.OK {
		return models.DeliveryStatus{Channel: t.Name(), Status: http.StatusOK, Error: "telegram: " + resp.Description}
	}
	return delivered(t.Name(), http.StatusOK)
}

var _ repository.AlertChannel = (*TelegramChannel)(nil)
