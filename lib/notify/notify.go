// Package notify delivers run reports over a transactional-email API, with
// an SMTP fallback and a no-op degradation when no credentials exist.
package notify

import (
	"context"
)

type Attachment struct {
	Name    string
	Content []byte
}

type Message struct {
	Subject     string
	HTML        string
	Recipient   string
	Attachments []Attachment
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Config struct {
	// Brevo transactional-email API key; takes priority over SMTP
	APIKey      string     `json:"api_key"`
	Recipient   string     `json:"recipient"`
	SenderName  string     `json:"sender_name"`
	SenderEmail string     `json:"sender_email"`
	Smtp        SmtpConfig `json:"smtp"`
}

// New picks a notifier from the configured credentials. Missing credentials
// degrade to a no-op rather than failing the run.
func New(cfg Config) Notifier {
	if cfg.APIKey != "" {
		return NewBrevoNotifier(cfg)
	}
	if cfg.Smtp.Server != "" {
		return NewSmtpNotifier(cfg)
	}
	return Noop{}
}
