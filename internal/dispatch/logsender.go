package dispatch

import (
	"context"
	"log/slog"
)

// LogSender writes outbound messages to the log instead of a modem or
// gateway API. Stands in until a real transport is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, body string) error {
	slog.Info("outbound sms", "to", to, "body", body)
	return nil
}
