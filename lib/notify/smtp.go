package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/notify")

// SmtpNotifier delivers mail directly over SMTP, used when no
// transactional email API key is configured.
type SmtpNotifier struct {
	cfg Config
}

func NewSmtpNotifier(cfg Config) SmtpNotifier {
	return SmtpNotifier{cfg: cfg}
}

func (n SmtpNotifier) Send(ctx context.Context, msg Message) error {
	_, span := tracer.Start(ctx, "SmtpNotifier.Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("%s <%s>", n.cfg.SenderName, n.cfg.Smtp.EmailAddress)
	mail.To = []string{msg.Recipient}
	mail.Subject = msg.Subject
	mail.HTML = []byte(msg.HTML)

	for _, att := range msg.Attachments {
		_, err := mail.Attach(bytes.NewReader(att.Content), att.Name, "application/octet-stream")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to attach file")
			return err
		}
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Smtp.Server, n.cfg.Smtp.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.cfg.Smtp.EmailAddress, n.cfg.Smtp.Password, n.cfg.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}

	return nil
}
