// Package config loads service configuration from an optional YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Stealinglight/StealinglightHK/internal/contact"
	"github.com/Stealinglight/StealinglightHK/internal/model"
)

// Provider names.
const (
	ProviderLog      = "log"
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
)

// Rate limit modes.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
	RateLimitOff    = "off"
)

// SendGridConfig holds SendGrid credentials.
type SendGridConfig struct {
	APIKey  string `yaml:"api_key"`
	Sandbox bool   `yaml:"sandbox"`
}

// SESConfig holds Amazon SES settings. Credentials come from the default
// AWS chain.
type SESConfig struct {
	Region           string `yaml:"region"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// RateLimitConfig selects and tunes the submission limiter.
type RateLimitConfig struct {
	Mode             string        `yaml:"mode"`
	MaxRequests      int           `yaml:"max_requests"`
	Window           time.Duration `yaml:"window"`
	RedisURL         string        `yaml:"redis_url"`
	GeneralPerMinute int           `yaml:"general_per_minute"`
}

// LimitsConfig bounds field lengths. Minimums of zero disable the check.
type LimitsConfig struct {
	NameMax        int `yaml:"name_max"`
	NameMin        int `yaml:"name_min"`
	EmailMax       int `yaml:"email_max"`
	SubjectMax     int `yaml:"subject_max"`
	MessageMax     int `yaml:"message_max"`
	MessageMin     int `yaml:"message_min"`
	ServiceTypeMax int `yaml:"service_type_max"`
}

// RecaptchaConfig enables reCAPTCHA v3 scoring when SecretKey is set.
type RecaptchaConfig struct {
	SecretKey string  `yaml:"secret_key"`
	MinScore  float64 `yaml:"min_score"`
}

// Config holds all configuration for the contact service.
type Config struct {
	Listen string `yaml:"listen"`

	ContactEmail   string   `yaml:"contact_email"`
	FromEmail      string   `yaml:"from_email"`
	FromName       string   `yaml:"from_name"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Provider string         `yaml:"provider"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
	SES      SESConfig      `yaml:"ses"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Limits    LimitsConfig    `yaml:"limits"`

	Sources       []string `yaml:"sources"`
	RequireSource bool     `yaml:"require_source"`

	DispatchTimeout   time.Duration `yaml:"dispatch_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	TrustForwardedFor bool          `yaml:"trust_forwarded_for"`

	Recaptcha RecaptchaConfig `yaml:"recaptcha"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	lim := contact.DefaultLimits()
	return &Config{
		Listen:   ":8080",
		FromName: "Contact Form",
		Provider: ProviderLog,
		SES:      SESConfig{Region: "us-west-2"},
		RateLimit: RateLimitConfig{
			Mode:             RateLimitMemory,
			MaxRequests:      3,
			Window:           60 * time.Second,
			RedisURL:         "redis://localhost:6379/0",
			GeneralPerMinute: 60,
		},
		Limits: LimitsConfig{
			NameMax:        lim.NameMax,
			NameMin:        lim.NameMin,
			EmailMax:       lim.EmailMax,
			SubjectMax:     lim.SubjectMax,
			MessageMax:     lim.MessageMax,
			MessageMin:     lim.MessageMin,
			ServiceTypeMax: lim.ServiceTypeMax,
		},
		Sources:         []string{string(model.SourceCreative), string(model.SourceSecurity)},
		DispatchTimeout: 12 * time.Second,
		MaxBodyBytes:    64 << 10,
		Recaptcha:       RecaptchaConfig{MinScore: 0.5},
		LogLevel:        "info",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (with ${VAR} expansion), then environment variables. An empty path falls
// back to CONTACT_CONFIG; if that is unset too, no file is read. The result
// is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONTACT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	setString(&c.Listen, "CONTACT_LISTEN")
	setString(&c.ContactEmail, "CONTACT_EMAIL")
	setString(&c.FromEmail, "CONTACT_FROM_EMAIL")
	setString(&c.FromName, "CONTACT_FROM_NAME")
	setList(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.Provider, "CONTACT_PROVIDER")
	setString(&c.SendGrid.APIKey, "SENDGRID_API_KEY")
	errs = append(errs, setBool(&c.SendGrid.Sandbox, "SENDGRID_SANDBOX"))
	setString(&c.SES.Region, "AWS_REGION")
	setString(&c.SES.ConfigurationSet, "SES_CONFIGURATION_SET")
	setString(&c.RateLimit.Mode, "RATE_LIMIT_MODE")
	errs = append(errs, setInt(&c.RateLimit.MaxRequests, "RATE_LIMIT_MAX"))
	errs = append(errs, setDuration(&c.RateLimit.Window, "RATE_LIMIT_WINDOW"))
	setString(&c.RateLimit.RedisURL, "REDIS_URL")
	errs = append(errs, setInt(&c.RateLimit.GeneralPerMinute, "RATE_LIMIT_GENERAL_PER_MIN"))
	setList(&c.Sources, "CONTACT_SOURCES")
	errs = append(errs, setBool(&c.RequireSource, "CONTACT_REQUIRE_SOURCE"))
	errs = append(errs, setDuration(&c.DispatchTimeout, "CONTACT_DISPATCH_TIMEOUT"))
	errs = append(errs, setInt64(&c.MaxBodyBytes, "CONTACT_MAX_BODY_BYTES"))
	errs = append(errs, setBool(&c.TrustForwardedFor, "CONTACT_TRUST_FORWARDED_FOR"))
	setString(&c.Recaptcha.SecretKey, "RECAPTCHA_SECRET_KEY")
	errs = append(errs, setFloat(&c.Recaptcha.MinScore, "RECAPTCHA_MIN_SCORE"))
	setString(&c.LogLevel, "LOG_LEVEL")

	return errors.Join(errs...)
}

// Validate reports every configuration problem found.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ContactEmail) == "" {
		errs = append(errs, errors.New("contact_email (CONTACT_EMAIL) is required"))
	}

	origins := 0
	for _, o := range c.AllowedOrigins {
		if strings.TrimSpace(o) == "" {
			continue
		}
		origins++
		if strings.Contains(o, "*") {
			errs = append(errs, fmt.Errorf("allowed_origins: wildcard origin %q is not allowed", o))
		}
	}
	if origins == 0 {
		errs = append(errs, errors.New("allowed_origins (ALLOWED_ORIGINS) must list at least one origin"))
	}

	switch c.Provider {
	case ProviderLog, ProviderSES:
	case ProviderSendGrid:
		if c.SendGrid.APIKey == "" {
			errs = append(errs, errors.New("sendgrid provider requires sendgrid.api_key (SENDGRID_API_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	switch c.RateLimit.Mode {
	case RateLimitOff:
	case RateLimitMemory, RateLimitRedis:
		if c.RateLimit.MaxRequests <= 0 {
			errs = append(errs, errors.New("rate_limit.max_requests must be positive"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate_limit.window must be positive"))
		}
		if c.RateLimit.Mode == RateLimitRedis && c.RateLimit.RedisURL == "" {
			errs = append(errs, errors.New("redis rate limiting requires rate_limit.redis_url (REDIS_URL)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rate_limit.mode %q", c.RateLimit.Mode))
	}
	if c.RateLimit.GeneralPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.general_per_minute must not be negative"))
	}

	if c.Recaptcha.MinScore < 0 || c.Recaptcha.MinScore > 1 {
		errs = append(errs, fmt.Errorf("recaptcha.min_score %v must be within [0, 1]", c.Recaptcha.MinScore))
	}

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ContactLimits converts the configured limits.
func (c *Config) ContactLimits() contact.Limits {
	return contact.Limits{
		NameMax:        c.Limits.NameMax,
		NameMin:        c.Limits.NameMin,
		EmailMax:       c.Limits.EmailMax,
		SubjectMax:     c.Limits.SubjectMax,
		MessageMax:     c.Limits.MessageMax,
		MessageMin:     c.Limits.MessageMin,
		ServiceTypeMax: c.Limits.ServiceTypeMax,
	}
}

// SourceTags returns the accepted site tags.
func (c *Config) SourceTags() []model.Source {
	tags := make([]model.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, model.Source(s))
		}
	}
	return tags
}

// Origins returns the allow-list with blank entries removed.
func (c *Config) Origins() []string {
	out := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
