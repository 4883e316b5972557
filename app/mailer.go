package chatapp

import (
	"context"
	"log/slog"
)

// Mailer delivers one-time codes to an email address. The production
// deployment plugs in an SMTP-backed implementation; LogMailer is the
// default for local development.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

// LogMailer writes the code to the log instead of sending mail.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOTP(ctx context.Context, email, code string) error {
	m.logger.Info("one-time code issued",
		slog.String("email", email),
		slog.String("code", code))
	return nil
}
