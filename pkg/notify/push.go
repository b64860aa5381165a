package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/vigil/pkg/config"
)

// WebhookPushSender delivers push notifications through an HTTP push
// gateway that fans out to device platforms.
type WebhookPushSender struct {
	url    string
	client *http.Client
}

// NewWebhookPushSender creates a push sender for the gateway URL
func NewWebhookPushSender(cfg config.PushConfig) *WebhookPushSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPushSender{
		url:    cfg.GatewayURL,
		client: &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	Tokens []string `json:"tokens"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
}

// Send posts one push message for the given device tokens
func (p *WebhookPushSender) Send(ctx context.Context, tokens []string, msg PushMessage) error {
	if len(tokens) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushRequest{Tokens: tokens, Title: msg.Title, Body: msg.Body})
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call push gateway: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned HTTP %d", resp.StatusCode)
	}
	return nil
}
