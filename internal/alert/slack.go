package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type slackConfig struct {
	WebhookURL string `json:"webhook_url"`
	Username   string `json:"username"`
	IconEmoji  string `json:"icon_emoji"`
	Channel    string `json:"channel"`
}

// slackAdapter posts messages to a Slack incoming webhook.
type slackAdapter struct {
	client *http.Client
}

func newSlackAdapter() *slackAdapter {
	return &slackAdapter{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *slackAdapter) Send(ctx context.Context, message string, config json.RawMessage) error {
	var cfg slackConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("parse slack config: %w", err)
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("slack webhook_url is required")
	}
	if cfg.Username == "" {
		cfg.Username = "cronwatch"
	}
	if cfg.IconEmoji == "" {
		cfg.IconEmoji = ":warning:"
	}

	payload, err := json.Marshal(map[string]string{
		"text":       message,
		"username":   cfg.Username,
		"icon_emoji": cfg.IconEmoji,
		"channel":    cfg.Channel,
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
