package email

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Stealinglight/StealinglightHK/internal/model"
)

// LogSender records messages instead of delivering them. It is meant for
// local development. Only metadata is logged, never the body.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg *model.OutboundMessage) (*SendResult, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger.InfoContext(ctx, "email not delivered (log provider)",
		"message_id", id,
		"to", msg.To,
		"reply_to", msg.ReplyTo,
		"subject_len", len(msg.Subject),
		"body_len", len(msg.TextBody),
		"source", string(msg.Source),
	)
	return &SendResult{Provider: "log", MessageID: id}, nil
}
