package contact

import (
	"fmt"
	"strings"
	"time"

	"github.com/Stealinglight/StealinglightHK/internal/model"
)

// Composer turns validated submissions into outbound notifications.
type Composer struct {
	// From is the verified sender address used for dispatch.
	From     string
	FromName string
	// To is the inbox that receives submissions.
	To string
	// Now defaults to time.Now when nil.
	Now func() time.Time
}

func (c *Composer) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// Subject returns the header-safe subject line for sub: the caller's subject
// if given, otherwise a default naming the sender.
func Subject(sub model.SubmissionRequest) string {
	if s := StripLineBreaks(sub.Subject); s != "" {
		return s
	}
	return "Contact Form: " + StripLineBreaks(sub.Name)
}

// Compose builds the outbound message for a submission that has already
// passed Validate. Values are sanitized here, per sink: the subject is
// stripped of line breaks, the HTML body is escaped, the plain-text body
// carries the submitted values verbatim and the reply-to address is the
// trimmed address, unescaped.
func (c *Composer) Compose(sub model.SubmissionRequest) *model.OutboundMessage {
	submitted := c.now()
	return &model.OutboundMessage{
		From:        c.From,
		FromName:    c.FromName,
		To:          c.To,
		ReplyTo:     strings.TrimSpace(sub.Email),
		Subject:     Subject(sub),
		TextBody:    composeText(sub, submitted),
		HTMLBody:    composeHTML(sub, submitted),
		Source:      sub.Source,
		SubmittedAt: submitted,
	}
}

func siteLabel(src model.Source) string {
	if src == "" {
		return "website"
	}
	return string(src) + " site"
}

func composeText(sub model.SubmissionRequest, submitted time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New contact form submission from the %s\n\n", siteLabel(sub.Source))
	fmt.Fprintf(&b, "Name: %s\n", sub.Name)
	fmt.Fprintf(&b, "Email: %s\n", sub.Email)
	if sub.ServiceType != "" {
		fmt.Fprintf(&b, "Service Type: %s\n", sub.ServiceType)
	}
	if sub.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", sub.Subject)
	}
	b.WriteString("\nMessage:\n")
	b.WriteString(sub.Message)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "Submitted at: %s\n", submitted.Format(time.RFC3339))

	return b.String()
}

func composeHTML(sub model.SubmissionRequest, submitted time.Time) string {
	var b strings.Builder

	safeEmail := EscapeHTML(sub.Email)

	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Contact Form Submission</title></head>\n<body>\n")
	b.WriteString("<h2>New Contact Form Submission</h2>\n")
	fmt.Fprintf(&b, "<p>From the %s</p>\n", EscapeHTML(siteLabel(sub.Source)))
	fmt.Fprintf(&b, "<p><strong>Name:</strong> %s</p>\n", EscapeHTML(sub.Name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> <a href=\"mailto:%s\">%s</a></p>\n", safeEmail, safeEmail)
	if sub.ServiceType != "" {
		fmt.Fprintf(&b, "<p><strong>Service Type:</strong> %s</p>\n", EscapeHTML(sub.ServiceType))
	}
	if sub.Subject != "" {
		fmt.Fprintf(&b, "<p><strong>Subject:</strong> %s</p>\n", EscapeHTML(sub.Subject))
	}
	b.WriteString("<h3>Message:</h3>\n")
	fmt.Fprintf(&b, "<p>%s</p>\n", htmlMultiline(sub.Message))
	fmt.Fprintf(&b, "<p style=\"color: #666; font-size: 12px;\">Submitted at %s</p>\n", submitted.Format(time.RFC3339))
	b.WriteString("</body>\n</html>\n")

	return b.String()
}
