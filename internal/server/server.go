package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Stealinglight/StealinglightHK/internal/contact"
	"github.com/Stealinglight/StealinglightHK/internal/email"
	"github.com/Stealinglight/StealinglightHK/internal/model"
)

// DefaultMaxBodyBytes caps the size of a submission body.
const DefaultMaxBodyBytes = 64 << 10

// Config holds server configuration.
type Config struct {
	AllowedOrigins []string
	// ContactEmail is the inbox that receives submissions.
	ContactEmail string
	FromEmail    string
	FromName     string

	Limits        contact.Limits
	Sources       []model.Source
	RequireSource bool

	MaxBodyBytes      int64
	DispatchTimeout   time.Duration
	TrustForwardedFor bool
	// FloodPerMinute is the per-IP request ceiling across all routes.
	// Zero disables the flood guard.
	FloodPerMinute int

	Recaptcha RecaptchaConfig
}

// Server is the HTTP server for contact form submissions.
type Server struct {
	config    Config
	logger    *slog.Logger
	origins   *OriginPolicy
	validator *contact.Validator
	composer  *contact.Composer
	sender    email.Sender
	limiter   Limiter
	flood     *FloodGuard
	router    chi.Router
}

// NewServer creates a new Server. A nil limiter means submissions are not
// throttled here and an upstream gateway is expected to do it.
func NewServer(cfg Config, sender email.Sender, limiter Limiter) (*Server, error) {
	origins, err := NewOriginPolicy(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	if cfg.Limits == (contact.Limits{}) {
		cfg.Limits = contact.DefaultLimits()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = email.DefaultDispatchTimeout
	}
	from := cfg.FromEmail
	if from == "" {
		from = cfg.ContactEmail
	}

	srv := &Server{
		config:  cfg,
		logger:  slog.Default(),
		origins: origins,
		validator: &contact.Validator{
			Limits:        cfg.Limits,
			Sources:       cfg.Sources,
			RequireSource: cfg.RequireSource,
		},
		composer: &contact.Composer{
			From:     from,
			FromName: cfg.FromName,
			To:       cfg.ContactEmail,
		},
		sender:  sender,
		limiter: limiter,
	}
	if cfg.FloodPerMinute > 0 {
		srv.flood = NewFloodGuard(cfg.FloodPerMinute, 0)
	}

	srv.router = srv.routes()
	return srv, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(SecurityHeadersMiddleware)
	r.Use(FloodGuardMiddleware(s.flood, s.config.TrustForwardedFor, s.origins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.Get("/healthz", s.HandleHealth)

	// The origin gate runs before method dispatch, so a disallowed origin
	// gets 403 even for an unsupported method.
	r.Route("/contact", func(r chi.Router) {
		r.Use(s.origins.Middleware)
		r.Options("/", s.HandlePreflight)
		r.Post("/", s.HandleContact)
	})

	return r
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Stop cleans up server resources.
func (s *Server) Stop() {
	if s.flood != nil {
		s.flood.Stop()
	}
	if st, ok := s.limiter.(interface{ Stop() }); ok {
		st.Stop()
	}
}

// HandleHealth reports liveness for container probes.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
