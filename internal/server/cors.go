package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// OriginPolicy is a strict allow-list of browser origins. Membership is an
// exact byte comparison: no wildcards, no subdomain or prefix matching and
// no case folding.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from origins. Empty entries are ignored;
// an empty list or a "*" entry is an error.
func NewOriginPolicy(origins []string) (*OriginPolicy, error) {
	p := &OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if strings.Contains(o, "*") {
			return nil, fmt.Errorf("origin %q: wildcards are not allowed", o)
		}
		p.allowed[o] = struct{}{}
	}
	if len(p.allowed) == 0 {
		return nil, errors.New("at least one allowed origin is required")
	}
	return p, nil
}

// Allowed reports whether origin is an exact member of the allow-list.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := p.allowed[origin]
	return ok
}

func setBaseCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Content-Type", "application/json")
}

// decorate sets the CORS headers for r and reports whether its Origin is
// allowed. Only an allowed origin is echoed back.
func (p *OriginPolicy) decorate(w http.ResponseWriter, r *http.Request) bool {
	h := w.Header()
	setBaseCORSHeaders(h)
	h.Add("Vary", "Origin")

	origin := r.Header.Get("Origin")
	if !p.Allowed(origin) {
		return false
	}
	h.Set("Access-Control-Allow-Origin", origin)
	return true
}

// Middleware rejects requests whose Origin is absent or not allowed with 403
// before anything else runs. Allowed origins are echoed back.
func (p *OriginPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.decorate(w, r) {
			writeError(w, http.StatusForbidden, msgOriginNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
