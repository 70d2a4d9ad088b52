package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Stealinglight/StealinglightHK/internal/config"
	"github.com/Stealinglight/StealinglightHK/internal/email"
	"github.com/Stealinglight/StealinglightHK/internal/server"
)

func main() {
	configPath := flag.String("config", envOr("CONTACT_CONFIG", ""), "YAML config file (optional)")
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sender, err := newSender(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to configure email provider: %v", err)
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to configure rate limiter: %v", err)
	}
	defer closeLimiter()

	srv, err := server.NewServer(server.Config{
		AllowedOrigins:    cfg.Origins(),
		ContactEmail:      cfg.ContactEmail,
		FromEmail:         cfg.FromEmail,
		FromName:          cfg.FromName,
		Limits:            cfg.ContactLimits(),
		Sources:           cfg.SourceTags(),
		RequireSource:     cfg.RequireSource,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		DispatchTimeout:   cfg.DispatchTimeout,
		TrustForwardedFor: cfg.TrustForwardedFor,
		FloodPerMinute:    cfg.RateLimit.GeneralPerMinute,
		Recaptcha: server.RecaptchaConfig{
			SecretKey: cfg.Recaptcha.SecretKey,
			MinScore:  cfg.Recaptcha.MinScore,
		},
	}, sender, limiter)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Stop()

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.DispatchTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			"addr", cfg.Listen,
			"provider", cfg.Provider,
			"rate_limit", cfg.RateLimit.Mode,
			"origins", len(cfg.Origins()),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		srv.Stop()
		closeLimiter()
		os.Exit(1)
	}
}

func newSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (email.Sender, error) {
	switch cfg.Provider {
	case config.ProviderSendGrid:
		if cfg.SendGrid.Sandbox {
			logger.Warn("sendgrid sandbox mode enabled, messages will not be delivered")
		}
		return &email.SendGridSender{
			APIKey:      cfg.SendGrid.APIKey,
			SandboxMode: cfg.SendGrid.Sandbox,
		}, nil
	case config.ProviderSES:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SES.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s := email.NewSESSender(awsCfg)
		s.ConfigurationSet = cfg.SES.ConfigurationSet
		return s, nil
	default:
		logger.Warn("log provider selected, submissions will only be logged")
		return &email.LogSender{Logger: logger}, nil
	}
}

// newLimiter returns the submission limiter for the configured mode and a
// func releasing its resources. Mode "off" yields a nil limiter.
func newLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (server.Limiter, func(), error) {
	rl := cfg.RateLimit
	switch rl.Mode {
	case config.RateLimitRedis:
		opts, err := redis.ParseURL(rl.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, rate limiting will fail open", "error", err)
		}
		closeFn := func() { _ = client.Close() }
		return server.NewRedisLimiter(client, "contact:ratelimit:", rl.MaxRequests, rl.Window), closeFn, nil
	case config.RateLimitOff:
		logger.Info("in-process rate limiting disabled")
		return nil, func() {}, nil
	default:
		l := server.NewFixedWindowLimiter(server.RateLimiterConfig{
			MaxRequests:     rl.MaxRequests,
			Window:          rl.Window,
			CleanupInterval: 5 * time.Minute,
		})
		return l, l.Stop, nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
