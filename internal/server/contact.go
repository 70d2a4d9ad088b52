package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Stealinglight/StealinglightHK/internal/contact"
	"github.com/Stealinglight/StealinglightHK/internal/email"
	"github.com/Stealinglight/StealinglightHK/internal/model"
)

// Client-facing messages. These never carry internal detail.
const (
	msgSent             = "Message sent successfully"
	msgInvalidBody      = "Missing or invalid request body"
	msgTooManyRequests  = "Too many requests. Please try again later."
	msgSendFailed       = "Failed to send message"
	msgOriginNotAllowed = "CORS origin not allowed"
	msgMethodNotAllowed = "Method not allowed"
	msgNotFound         = "Not found"
	msgInternalError    = "Internal server error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ContactResponse{Error: msg})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, model.ContactResponse{Message: msgSent})
}

// HandlePreflight answers a CORS preflight from an allowed origin. The
// origin gate has already set the CORS headers.
func (s *Server) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HandleContact runs one submission through validation, throttling,
// composition and dispatch.
func (s *Server) HandleContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.logger.With("request_id", RequestIDFromContext(ctx))
	ip := extractIP(r, s.config.TrustForwardedFor)

	req, err := decodeSubmission(w, r, s.config.MaxBodyBytes)
	if err != nil {
		logger.Info("rejected request body", "error", err, "source_ip", ip)
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	sub, err := s.validator.Validate(req)
	if err != nil {
		var verr *contact.ValidationError
		switch {
		case errors.Is(err, contact.ErrSpam):
			logger.Info("honeypot triggered, dropping submission", "source_ip", ip)
			writeSuccess(w)
		case errors.As(err, &verr):
			logger.Info("submission failed validation", "fields", verr.Fields(), "source_ip", ip)
			writeError(w, http.StatusBadRequest, verr.Error())
		default:
			logger.Error("validating submission", "error", err)
			writeError(w, http.StatusInternalServerError, msgInternalError)
		}
		return
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, ip)
		if err != nil {
			logger.Warn("rate limiter unavailable", "error", err, "allowed", allowed)
		}
		if !allowed {
			logger.Warn("rate limit exceeded", "source_ip", ip)
			writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
	}

	if rc := s.config.Recaptcha; rc.SecretKey != "" {
		score, err := verifyRecaptcha(ctx, rc.SecretKey, sub.RecaptchaToken, ip)
		switch {
		case err != nil:
			logger.Warn("recaptcha verification failed, continuing", "error", err)
		case score < rc.minScore():
			logger.Info("recaptcha score below threshold, dropping submission", "score", score, "source_ip", ip)
			writeSuccess(w)
			return
		}
	}

	msg := s.composer.Compose(sub)

	// A client disconnect must not abort a message the provider may already
	// be delivering.
	res, err := email.Dispatch(context.WithoutCancel(ctx), s.sender, msg, s.config.DispatchTimeout)
	if err != nil {
		logger.Error("error sending email", "error", err, "source_ip", ip)
		writeError(w, http.StatusInternalServerError, msgSendFailed)
		return
	}

	logger.Info("contact form submission",
		"event", "contact_form_submission",
		"source_ip", ip,
		"reply_to", msg.ReplyTo,
		"timestamp", msg.SubmittedAt.Format(time.RFC3339),
		"source", string(msg.Source),
		"provider", res.Provider,
		"message_id", res.MessageID,
	)
	writeSuccess(w)
}

// decodeSubmission reads a single JSON object of at most maxBytes.
func decodeSubmission(w http.ResponseWriter, r *http.Request, maxBytes int64) (model.SubmissionRequest, error) {
	var req model.SubmissionRequest

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		return req, fmt.Errorf("reading body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return req, errors.New("body is not a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("decoding body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return req, errors.New("trailing data after JSON object")
	}
	return req, nil
}
