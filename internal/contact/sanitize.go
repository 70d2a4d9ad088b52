package contact

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML replaces the five HTML-significant characters with entities.
// Escaping an already escaped string escapes the ampersands again; callers
// must apply it exactly once, at the point a value enters an HTML body.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var lineBreakStripper = strings.NewReplacer(
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
	"\u0085", " ",
	"\u2028", " ",
	"\u2029", " ",
)

// StripLineBreaks makes s safe for a single-line mail header by replacing
// every line terminator with a space and trimming the result.
func StripLineBreaks(s string) string {
	return strings.TrimSpace(lineBreakStripper.Replace(s))
}

// htmlMultiline escapes s and converts its line breaks to <br> tags.
func htmlMultiline(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(EscapeHTML(s), "\n", "<br>")
}
