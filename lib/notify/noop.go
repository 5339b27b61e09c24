package notify

import (
	"context"
	"log/slog"
)

// Noop is the fallback when neither an API key nor SMTP credentials
// are configured. It drops messages with a warning so a run without
// email setup still completes.
type Noop struct{}

func (Noop) Send(ctx context.Context, msg Message) error {
	slog.WarnContext(ctx, "email delivery not configured, dropping notification",
		"subject", msg.Subject, "attachments", len(msg.Attachments))
	return nil
}
