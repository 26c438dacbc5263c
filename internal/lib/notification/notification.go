package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/models"
)

const (
	PurposeCode    = "otp"
	PurposeMessage = "message"

	codeSubject = "Verification code"
)

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// Gateway delivers codes and messages. Delivery failures are logged, never returned.
type Gateway struct {
	log     *slog.Logger
	pub     Publisher
	codeTTL time.Duration
}

func New(log *slog.Logger, pub Publisher, codeTTL time.Duration) *Gateway {
	return &Gateway{
		log:     log,
		pub:     pub,
		codeTTL: codeTTL,
	}
}

func (g *Gateway) SendCode(ctx context.Context, channel models.Channel, address, code string) {
	const op = "notification.SendCode"

	log := g.log.With(
		slog.String("op", op),
		slog.String("channel", string(channel)),
	)

	switch channel {
	case models.ChannelEmail:
		msg := models.Message{
			Email:   address,
			Subject: codeSubject,
			Body: fmt.Sprintf(
				"Your verification code is: %s\n\nThis code is valid for %d minutes.",
				code, int(g.codeTTL.Minutes()),
			),
			Purpose: PurposeCode,
		}

		if err := g.pub.SendMessage(ctx, msg); err != nil {
			log.Error("failed to send verification code", sl.Err(err))
			return
		}

		log.Info("verification code queued")
	case models.ChannelMobile:
		// no SMS provider is wired; the code only reaches the debug log
		log.Debug("mock sms delivery", slog.String("mobile", address), slog.String("code", code))
	default:
		log.Warn("unknown delivery channel")
	}
}

func (g *Gateway) SendMessage(ctx context.Context, address, subject, body string) {
	const op = "notification.SendMessage"

	log := g.log.With(slog.String("op", op))

	msg := models.Message{
		Email:   address,
		Subject: subject,
		Body:    body,
		Purpose: PurposeMessage,
	}

	if err := g.pub.SendMessage(ctx, msg); err != nil {
		log.Error("failed to send message", sl.Err(err))
		return
	}

	log.Info("message queued")
}
