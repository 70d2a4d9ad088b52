package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Stealinglight/StealinglightHK/internal/model"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGridSender sends emails via the SendGrid v3 API.
type SendGridSender struct {
	APIKey string
	// SandboxMode when true prevents actual email delivery via SendGrid.
	SandboxMode bool
	// BaseURL overrides the API host (for testing).
	BaseURL string
}

// Send dispatches msg through the SendGrid API.
func (s *SendGridSender) Send(ctx context.Context, msg *model.OutboundMessage) (*SendResult, error) {
	client := sendgrid.NewSendClient(s.APIKey)
	if s.BaseURL != "" {
		client.BaseURL = s.BaseURL + sendGridEndpoint
	}

	resp, err := client.SendWithContext(ctx, s.buildMessage(msg))
	if err != nil {
		return nil, fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	messageID := ""
	if ids, ok := resp.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}
	return &SendResult{
		Provider:   "sendgrid",
		StatusCode: resp.StatusCode,
		MessageID:  messageID,
	}, nil
}

func (s *SendGridSender) buildMessage(msg *model.OutboundMessage) *mail.SGMailV3 {
	from := mail.NewEmail(msg.FromName, msg.From)
	to := mail.NewEmail("", msg.To)

	message := mail.NewSingleEmail(from, msg.Subject, to, msg.TextBody, msg.HTMLBody)
	message.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	message.AddCategories("contact-form")
	if msg.Source != "" {
		message.SetCustomArg("source", string(msg.Source))
	}

	if s.SandboxMode {
		settings := mail.NewMailSettings()
		settings.SetSandboxMode(mail.NewSetting(true))
		message.SetMailSettings(settings)
	}
	return message
}
