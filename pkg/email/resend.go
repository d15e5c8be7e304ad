package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendSender implements Sender using Resend
type ResendSender struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

// NewResendSender creates a new Resend email sender
func NewResendSender(config *EmailConfig, logger *zap.Logger) (*ResendSender, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}
	if config.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	return newResendSender(resend.NewClient(config.APIKey), config, logger), nil
}

func newResendSender(client *resend.Client, config *EmailConfig, logger *zap.Logger) *ResendSender {
	from := config.FromEmail
	if config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", config.FromName, config.FromEmail)
	}
	return &ResendSender{client: client, from: from, logger: logger}
}

func (s *ResendSender) Send(ctx context.Context, to, subject, html string) error {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		s.logger.Warn("email send failed", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", zap.String("to", to), zap.String("id", sent.Id))
	return nil
}
