package model

import "time"

// Source identifies which front-end site a submission came from.
type Source string

const (
	SourceCreative Source = "creative"
	SourceSecurity Source = "security"
)

// DefaultSources are the site tags accepted when no explicit list is configured.
var DefaultSources = []Source{SourceCreative, SourceSecurity}

// SubmissionRequest is the decoded body of a contact form POST. Every field is
// untrusted: nothing here is safe to embed in HTML or a mail header as-is.
type SubmissionRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	Subject     string `json:"subject,omitempty"`
	Source      Source `json:"source,omitempty"`
	ServiceType string `json:"serviceType,omitempty"`

	// Website is the honeypot field. Humans never see it, so it must be empty.
	Website string `json:"website,omitempty"`

	// RecaptchaToken is an optional reCAPTCHA v3 token from the front-end.
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
}

// OutboundMessage is a fully composed notification ready for the delivery
// provider. Subject never contains CR or LF; HTMLBody carries escaped values.
type OutboundMessage struct {
	From     string
	FromName string
	To       string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string

	// Source is carried for provider-side tagging (categories, custom args).
	Source Source

	SubmittedAt time.Time
}

// ContactResponse is the JSON envelope returned for every non-empty response.
type ContactResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
