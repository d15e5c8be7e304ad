package email

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers one HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// EmailConfig holds email service configuration
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// LogSender only logs. It stands in when delivery is disabled.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("email delivery disabled, dropping message",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
