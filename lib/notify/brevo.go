package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"evcs-harvester/lib/telemetry"
)

const DefaultBrevoBaseURL = "https://api.brevo.com"

type brevoRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoAttachment struct {
	Content string `json:"content"`
	Name    string `json:"name"`
}

type brevoEmail struct {
	Sender      brevoRecipient    `json:"sender"`
	To          []brevoRecipient  `json:"to"`
	Subject     string            `json:"subject"`
	HtmlContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

type brevoErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Account struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type BrevoNotifier struct {
	http *resty.Client
	cfg  Config
}

func NewBrevoNotifier(cfg Config) *BrevoNotifier {
	client := resty.New()
	client.SetBaseURL(DefaultBrevoBaseURL)
	client.SetHeader("api-key", cfg.APIKey)
	client.SetHeader("accept", "application/json")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "notify/brevo")

	return &BrevoNotifier{http: client, cfg: cfg}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (n *BrevoNotifier) SetBaseURL(url string) {
	n.http.SetBaseURL(url)
}

func (n *BrevoNotifier) Send(ctx context.Context, msg Message) error {
	payload := brevoEmail{
		Sender: brevoRecipient{
			Name:  n.cfg.SenderName,
			Email: n.cfg.SenderEmail,
		},
		To:          []brevoRecipient{{Email: msg.Recipient}},
		Subject:     msg.Subject,
		HtmlContent: msg.HTML,
	}
	for _, att := range msg.Attachments {
		payload.Attachment = append(payload.Attachment, brevoAttachment{
			Content: base64.StdEncoding.EncodeToString(att.Content),
			Name:    att.Name,
		})
	}

	var sent brevoSendResponse
	var apiErr brevoErrorResponse
	res, err := n.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&sent).
		SetError(&apiErr).
		Post("/v3/smtp/email")
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("brevo send failed: %s: %s (%s)", res.Status(), apiErr.Message, apiErr.Code)
	}

	slog.InfoContext(ctx, "notification sent", "message_id", sent.MessageID, "recipient", msg.Recipient)
	return nil
}

// GetAccount checks that the configured API key can reach the account
// endpoint, used by the verify command as a preflight.
func (n *BrevoNotifier) GetAccount(ctx context.Context) (Account, error) {
	var account Account
	var apiErr brevoErrorResponse
	res, err := n.http.R().
		SetContext(ctx).
		SetResult(&account).
		SetError(&apiErr).
		Get("/v3/account")
	if err != nil {
		return Account{}, err
	}
	if res.IsError() {
		return Account{}, fmt.Errorf("brevo account check failed: %s: %s (%s)", res.Status(), apiErr.Message, apiErr.Code)
	}
	return account, nil
}
