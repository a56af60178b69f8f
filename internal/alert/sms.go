package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type smsConfig struct {
	PhoneNumber string `json:"phone_number"`
	APIKey      string `json:"api_key"`
}

// smsAdapter delivers through an HTTP SMS gateway. Without a configured
// gateway URL the message is only logged, which still counts as delivered.
type smsAdapter struct {
	gatewayURL string
	client     *http.Client
}

func newSMSAdapter(gatewayURL string) *smsAdapter {
	return &smsAdapter{
		gatewayURL: gatewayURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *smsAdapter) Send(ctx context.Context, message string, config json.RawMessage) error {
	var cfg smsConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("parse sms config: %w", err)
	}
	if cfg.PhoneNumber == "" {
		return fmt.Errorf("sms phone_number is required")
	}

	if a.gatewayURL == "" {
		log.Info().Str("phone", cfg.PhoneNumber).Str("message", message).
			Msg("[SMS] No gateway configured, logging message only")
		return nil
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("sms api_key is required")
	}

	payload, err := json.Marshal(map[string]string{
		"phone":   cfg.PhoneNumber,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
