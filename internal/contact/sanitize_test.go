package contact

import (
	"strings"
	"testing"
)

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "Hello world", "Hello world"},
		{"ampersand", "Tom & Jerry", "Tom &amp; Jerry"},
		{"script tag", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"double quotes", `say "hi"`, "say &quot;hi&quot;"},
		{"single quotes", "it's", "it&#039;s"},
		{"img onerror", "<img src=x onerror=alert(1)>", "&lt;img src=x onerror=alert(1)&gt;"},
		{"unicode preserved", "café ☕", "café ☕"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeHTML(tt.input); got != tt.want {
				t.Errorf("EscapeHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeHTMLIsNotIdempotent(t *testing.T) {
	inputs := []string{"&", "<b>", `"quoted"`, "it's", "a & b < c"}
	for _, in := range inputs {
		once := EscapeHTML(in)
		twice := EscapeHTML(once)
		if once == twice {
			t.Errorf("EscapeHTML(EscapeHTML(%q)) collapsed to single-escaped form %q", in, once)
		}
		if !strings.Contains(twice, "&amp;") {
			t.Errorf("double escape of %q = %q, want escaped ampersands", in, twice)
		}
	}
}

func TestEscapeHTMLDeterministic(t *testing.T) {
	in := `<a href="x">'&'</a>`
	first := EscapeHTML(in)
	for i := 0; i < 5; i++ {
		if got := EscapeHTML(in); got != first {
			t.Fatalf("EscapeHTML not deterministic: %q vs %q", got, first)
		}
	}
}

func TestStripLineBreaks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no breaks", "Normal Subject", "Normal Subject"},
		{"lf injection", "Normal Subject\nBcc: attacker@evil.com", "Normal Subject Bcc: attacker@evil.com"},
		{"crlf injection", "Subject\r\nBcc: attacker@evil.com", "Subject Bcc: attacker@evil.com"},
		{"bare cr", "a\rb", "a b"},
		{"unicode line separator", "a\u2028b\u2029c", "a b c"},
		{"next line", "a\u0085b", "a b"},
		{"trailing newline trimmed", "Subject\n", "Subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripLineBreaks(tt.input)
			if got != tt.want {
				t.Errorf("StripLineBreaks(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if strings.ContainsAny(got, "\r\n") {
				t.Errorf("StripLineBreaks(%q) still contains CR or LF: %q", tt.input, got)
			}
		})
	}
}

func TestHTMLMultiline(t *testing.T) {
	got := htmlMultiline("line one\r\nline <two>\nthree")
	want := "line one<br>line &lt;two&gt;<br>three"
	if got != want {
		t.Errorf("htmlMultiline() = %q, want %q", got, want)
	}
}
