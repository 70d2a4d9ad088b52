package contact

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Stealinglight/StealinglightHK/internal/model"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func testComposer() *Composer {
	return &Composer{
		From:     "noreply@example.com",
		FromName: "Contact Form",
		To:       "inbox@example.com",
		Now:      func() time.Time { return fixedNow },
	}
}

func TestComposeDefaultSubject(t *testing.T) {
	msg := testComposer().Compose(validRequest())
	assert.Equal(t, "Contact Form: Test User", msg.Subject)
}

func TestComposeCustomSubject(t *testing.T) {
	req := validRequest()
	req.Subject = "Project inquiry"
	msg := testComposer().Compose(req)
	assert.Equal(t, "Project inquiry", msg.Subject)
	assert.Contains(t, msg.TextBody, "Subject: Project inquiry\n")
}

func TestComposeSubjectHeaderInjection(t *testing.T) {
	tests := []struct {
		name string
		req  model.SubmissionRequest
	}{
		{"subject lf", model.SubmissionRequest{Name: "Test User", Subject: "Normal Subject\nBcc: attacker@evil.com"}},
		{"subject crlf", model.SubmissionRequest{Name: "Test User", Subject: "Normal\r\nBcc: attacker@evil.com"}},
		{"name in default subject", model.SubmissionRequest{Name: "Test\r\nBcc: attacker@evil.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Email = "test@example.com"
			tt.req.Message = "Test message"
			msg := testComposer().Compose(tt.req)
			assert.NotContains(t, msg.Subject, "\n")
			assert.NotContains(t, msg.Subject, "\r")
			assert.Contains(t, msg.Subject, "Bcc: attacker@evil.com", "content is kept on one line")
		})
	}
}

func TestComposeEscapesHTMLBody(t *testing.T) {
	req := validRequest()
	req.Name = `<script>alert("xss")</script>`
	req.Message = "<img src=x onerror=alert(1)> & more"
	req.Subject = "<b>bold</b>"
	req.ServiceType = "'quoted'"

	msg := testComposer().Compose(req)

	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.NotContains(t, msg.HTMLBody, "<img")
	assert.NotContains(t, msg.HTMLBody, "<b>bold")
	assert.Contains(t, msg.HTMLBody, "&lt;script&gt;alert(&quot;xss&quot;)&lt;/script&gt;")
	assert.Contains(t, msg.HTMLBody, "&lt;img src=x onerror=alert(1)&gt; &amp; more")
	assert.Contains(t, msg.HTMLBody, "&#039;quoted&#039;")
	assert.NotContains(t, msg.HTMLBody, "&amp;lt;", "values are escaped exactly once")
}

func TestComposeTextBodyIsVerbatim(t *testing.T) {
	req := validRequest()
	req.Message = "Line one\n<b>not html</b> & friends"

	msg := testComposer().Compose(req)

	assert.Contains(t, msg.TextBody, "Line one\n<b>not html</b> & friends")
	assert.NotContains(t, msg.TextBody, "&lt;")
}

func TestComposeTextBodyLayout(t *testing.T) {
	req := validRequest()
	req.Source = model.SourceCreative
	req.ServiceType = "Photography"

	msg := testComposer().Compose(req)

	want := strings.Join([]string{
		"New contact form submission from the creative site",
		"",
		"Name: Test User",
		"Email: test@example.com",
		"Service Type: Photography",
		"",
		"Message:",
		"Test message",
		"",
		"---",
		"Submitted at: 2026-03-14T15:09:26Z",
		"",
	}, "\n")
	assert.Equal(t, want, msg.TextBody)
}

func TestComposeWithoutSource(t *testing.T) {
	msg := testComposer().Compose(validRequest())
	assert.True(t, strings.HasPrefix(msg.TextBody, "New contact form submission from the website\n"))
	assert.Contains(t, msg.HTMLBody, "<p>From the website</p>")
}

func TestComposeAddressing(t *testing.T) {
	req := validRequest()
	req.Email = "  reply@example.com "
	req.Source = model.SourceSecurity

	msg := testComposer().Compose(req)

	assert.Equal(t, "reply@example.com", msg.ReplyTo)
	assert.Equal(t, "noreply@example.com", msg.From)
	assert.Equal(t, "Contact Form", msg.FromName)
	assert.Equal(t, "inbox@example.com", msg.To)
	assert.Equal(t, model.SourceSecurity, msg.Source)
	assert.Equal(t, fixedNow, msg.SubmittedAt)
}

func TestComposeHTMLLineBreaks(t *testing.T) {
	req := validRequest()
	req.Message = "first\r\nsecond\nthird"

	msg := testComposer().Compose(req)
	assert.Contains(t, msg.HTMLBody, "<p>first<br>second<br>third</p>")
}

func TestComposeDefaultClock(t *testing.T) {
	c := &Composer{From: "a@example.com", To: "b@example.com"}
	before := time.Now().UTC().Add(-time.Second)
	msg := c.Compose(validRequest())
	assert.True(t, msg.SubmittedAt.After(before))
	assert.Equal(t, time.UTC, msg.SubmittedAt.Location())
}
