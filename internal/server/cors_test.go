package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		wantErr bool
	}{
		{"single origin", []string{"https://example.com"}, false},
		{"blank entries ignored", []string{"", " https://example.com "}, false},
		{"empty list", nil, true},
		{"only blanks", []string{"", "  "}, true},
		{"wildcard", []string{"*"}, true},
		{"wildcard subdomain", []string{"https://*.example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOriginPolicy(tt.origins)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewOriginPolicy(%q) error = %v, wantErr %v", tt.origins, err, tt.wantErr)
			}
		})
	}
}

func TestOriginPolicyAllowed(t *testing.T) {
	p, err := NewOriginPolicy([]string{"https://example.com", "https://security.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://example.com", true},
		{"https://security.example.com", true},
		{"", false},
		{"https://evil.com", false},
		{"http://example.com", false},
		{"https://EXAMPLE.com", false},
		{"https://example.com/", false},
		{"https://example.com.evil.com", false},
		{"https://sub.example.com", false},
		{"https://example.com:443", false},
		{"null", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := p.Allowed(tt.origin); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestOriginPolicyMiddleware(t *testing.T) {
	p, err := NewOriginPolicy([]string{"https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	called := false
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("allowed origin echoed", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/contact", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if !called {
			t.Error("expected next handler to run")
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://example.com")
		}
		if got := rec.Header().Get("Vary"); got != "Origin" {
			t.Errorf("Vary = %q, want Origin", got)
		}
	})

	t.Run("disallowed origin rejected", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/contact", nil)
		req.Header.Set("Origin", "https://evil.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if called {
			t.Error("next handler must not run for a disallowed origin")
		}
		if rec.Code != http.StatusForbidden {
			t.Errorf("got status %d, want %d", rec.Code, http.StatusForbidden)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
			t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, "POST, OPTIONS")
		}
		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
	})

	t.Run("missing origin rejected", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/contact", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if called || rec.Code != http.StatusForbidden {
			t.Errorf("got status %d (called=%v), want 403 without calling next", rec.Code, called)
		}
	})
}
