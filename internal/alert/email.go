package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"
)

type emailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	To       string `json:"to"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Cc       string `json:"cc"`
	Bcc      string `json:"bcc"`
}

// emailAdapter sends messages over SMTP. Auth is used only when a username
// is configured.
type emailAdapter struct{}

func newEmailAdapter() *emailAdapter {
	return &emailAdapter{}
}

func (a *emailAdapter) Send(ctx context.Context, message string, config json.RawMessage) error {
	var cfg emailConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("parse email config: %w", err)
	}
	if cfg.To == "" || cfg.From == "" {
		return fmt.Errorf("email to and from addresses are required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.Subject == "" {
		cfg.Subject = "Cronwatch Alert"
	}

	recipients := splitAddresses(cfg.To)
	var headers strings.Builder
	fmt.Fprintf(&headers, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&headers, "To: %s\r\n", cfg.To)
	if cfg.Cc != "" {
		fmt.Fprintf(&headers, "Cc: %s\r\n", cfg.Cc)
		recipients = append(recipients, splitAddresses(cfg.Cc)...)
	}
	if cfg.Bcc != "" {
		recipients = append(recipients, splitAddresses(cfg.Bcc)...)
	}
	fmt.Fprintf(&headers, "Subject: %s\r\n", cfg.Subject)
	headers.WriteString("MIME-Version: 1.0\r\n")
	headers.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	headers.WriteString("\r\n")

	body := headers.String() + message + "\r\n\r\n--\r\nSent by cronwatch\r\n"

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err := smtp.SendMail(addr, auth, cfg.From, recipients, []byte(body)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func splitAddresses(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
