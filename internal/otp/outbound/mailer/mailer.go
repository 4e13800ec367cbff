// Package mailer delivers challenge passcodes over email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/instrument"
	"github.com/oncosight/scangate/internal/pkg/mail"
	"go.opentelemetry.io/otel/trace"
)

// Email sends passcodes through the configured mail provider.
//
// Sends run against a detached context with their own deadline: a client
// hanging up must not abort a message the provider may already be relaying.
type Email struct {
	mail    mail.Mail
	ins     instrument.Instrumentation
	timeout time.Duration
}

// NewEmail constructs the challenge mailer. A non-positive timeout falls back
// to 10 seconds.
func NewEmail(m mail.Mail, ins instrument.Instrumentation, timeout time.Duration) *Email {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Email{mail: m, ins: ins, timeout: timeout}
}

func (e *Email) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.ins.Tracer("otp.outbound.mailer").Start(ctx, name)
}

// SendChallenge emails the passcode to the identity.
func (e *Email) SendChallenge(ctx context.Context, identity string, purpose entity.Purpose, code string, ttl time.Duration) error {
	ctx, span := e.startSpan(ctx, "SendChallenge")
	defer span.End()

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	subject := "Your verification code"
	minutes := int(ttl.Minutes())

	text := fmt.Sprintf(
		"Your %s verification code is %s.\r\n\r\nIt expires in %d minutes. If you did not request this code, you can ignore this email.",
		purpose.String(), code, minutes,
	)
	html := fmt.Sprintf(
		`<p>Your %s verification code is:</p><p style="font-size:24px;font-weight:bold;letter-spacing:4px;">%s</p><p>It expires in %d minutes. If you did not request this code, you can ignore this email.</p>`,
		purpose.String(), code, minutes,
	)

	err := e.mail.Send(sendCtx, mail.Message{
		To:       []string{identity},
		Subject:  subject,
		TextBody: text,
		HTMLBody: html,
	})
	if err != nil {
		var perr *mail.ProviderError
		transient := errors.As(err, &perr) && perr.Temporary()
		slog.ErrorContext(ctx, "failed to send challenge email", "purpose", purpose.String(), "transient", transient, "error", err)
		span.RecordError(err)
		return err
	}

	return nil
}
