package email

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/Stealinglight/StealinglightHK/internal/model"
)

const utf8Charset = "UTF-8"

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends emails via Amazon SES v2.
type SESSender struct {
	client sesAPI
	// ConfigurationSet is attached to every message when set.
	ConfigurationSet string
}

// NewSESSender wraps an SES v2 client built from cfg.
func NewSESSender(cfg aws.Config) *SESSender {
	return &SESSender{client: sesv2.NewFromConfig(cfg)}
}

// Send dispatches msg through SES as a simple (non-raw) message.
func (s *SESSender) Send(ctx context.Context, msg *model.OutboundMessage) (*SendResult, error) {
	out, err := s.client.SendEmail(ctx, s.buildInput(msg))
	if err != nil {
		return nil, fmt.Errorf("ses send: %w", err)
	}
	return &SendResult{
		Provider:  "ses",
		MessageID: aws.ToString(out.MessageId),
	}, nil
}

func (s *SESSender) buildInput(msg *model.OutboundMessage) *sesv2.SendEmailInput {
	from := (&mail.Address{Name: msg.FromName, Address: msg.From}).String()

	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String(utf8Charset)},
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String(utf8Charset)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		ReplyToAddresses: []string{msg.ReplyTo},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(utf8Charset)},
				Body:    body,
			},
		},
	}
	if msg.Source != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("source"), Value: aws.String(string(msg.Source))}}
	}
	if s.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(s.ConfigurationSet)
	}
	return input
}
