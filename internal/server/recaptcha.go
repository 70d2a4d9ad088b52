package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRecaptchaMinScore is the lowest reCAPTCHA v3 score treated as human.
const DefaultRecaptchaMinScore = 0.5

var recaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// setRecaptchaVerifyURL overrides the verification endpoint (for testing).
func setRecaptchaVerifyURL(u string) { recaptchaVerifyURL = u }

var recaptchaClient = &http.Client{Timeout: 5 * time.Second}

// RecaptchaConfig enables reCAPTCHA v3 scoring of submissions. An empty
// SecretKey disables it.
type RecaptchaConfig struct {
	SecretKey string
	MinScore  float64
}

func (c RecaptchaConfig) minScore() float64 {
	if c.MinScore <= 0 {
		return DefaultRecaptchaMinScore
	}
	return c.MinScore
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// verifyRecaptcha validates a reCAPTCHA v3 token with Google's siteverify API.
// If secretKey is empty, it returns 1.0 (graceful skip for dev environments).
// An unsuccessful verification scores 0.
func verifyRecaptcha(ctx context.Context, secretKey, token, remoteIP string) (float64, error) {
	if secretKey == "" {
		return 1.0, nil
	}

	form := url.Values{
		"secret":   {secretKey},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recaptchaVerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("creating recaptcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := recaptchaClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("recaptcha verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("recaptcha returned status %d", resp.StatusCode)
	}

	var result recaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decoding recaptcha response: %w", err)
	}

	if !result.Success {
		return 0, nil
	}

	return result.Score, nil
}
