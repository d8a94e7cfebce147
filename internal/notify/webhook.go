package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marketpulse/internal/config"
)

// Webhook posts markdown messages to an enterprise group-chat webhook.
type Webhook struct {
	url        string
	httpClient *http.Client
}

func NewWebhook(cfg config.WebhookNotifyConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	MsgType  string          `json:"msgtype"`
	Markdown webhookMarkdown `json:"markdown"`
}

type webhookMarkdown struct {
	Content string `json:"content"`
}

type webhookReply struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (w *Webhook) Send(ctx context.Context, content string) error {
	if w == nil || w.url == "" {
		return fmt.Errorf("webhook url not configured")
	}

	body, err := json.Marshal(webhookPayload{
		MsgType:  "markdown",
		Markdown: webhookMarkdown{Content: content},
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(raw))
	}

	var reply webhookReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if reply.ErrCode != 0 {
		return fmt.Errorf("webhook error %d: %s", reply.ErrCode, reply.ErrMsg)
	}
	return nil
}
