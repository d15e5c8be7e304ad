package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/pkg/email"
)

const sendTimeout = 10 * time.Second

// notify sends one email. Delivery failures are logged and never reach the caller.
func notify(ctx context.Context, mailer email.Sender, logger *zap.Logger, to, subject, html string) {
	if mailer == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if err := mailer.Send(sendCtx, to, subject, html); err != nil {
		logger.Error("failed to send email", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
	}
}
