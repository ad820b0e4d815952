package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"registros/internal/amqp"
	"registros/internal/auth"
	"registros/internal/cache"
	"registros/internal/cli"
	"registros/internal/config"
	"registros/internal/core"
	apphttp "registros/internal/http"
	"registros/internal/log"
	"registros/internal/records"
	"registros/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentApp, cfg.LogLevel)

	res := cli.OpenBackend(context.Background(), logger, cfg)
	logger.Info("Data backend ready", "backend", cfg.DataBackend)

	cacheManager := cache.NewManager()
	recordCache := cache.NewLRUCache[[]core.Record](cfg.Cache.Size, cfg.Cache.TTL)
	cacheManager.Register(recordCache)
	cacheManager.StartCleanup(cfg.Cache.TTL)

	checks := map[string]records.Pinger{}
	if res.Pinger != nil {
		checks["records"] = res.Pinger
	}

	// Events are optional: without a broker the worker falls back to
	// periodic reconcile.
	var (
		amqpClient *amqp.Client
		publisher  services.Publisher
	)
	if cfg.AMQPEnabled() {
		c, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			logger.Warn("AMQP unavailable, record events disabled", log.FieldError, err)
		} else {
			amqpClient = c
			publisher = c
			checks["amqp"] = c
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQP.Exchange)
		}
	}

	authSvc := newAuthService(cfg, res.Users, amqpClient)
	recordSvc := services.NewRecordService(res.Records, recordCache, publisher)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records: recordSvc,
		Auth:    authSvc,
		Checks:  checks,
		Logger:  logger,
	}, apphttp.Options{
		AuthRequired:       cfg.Auth.Enabled,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting registros server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth", cfg.Auth.Enabled,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// newAuthService returns nil when auth is disabled, which also removes the
// /auth pages.
func newAuthService(cfg *config.Config, users auth.UserStore, amqpClient *amqp.Client) *auth.Service {
	if !cfg.Auth.Enabled {
		return nil
	}

	var notifier auth.Notifier = auth.LogNotifier{}
	if amqpClient != nil {
		notifier = amqp.ResetNotifier{Client: amqpClient}
	}

	resetURL := cfg.Auth.ResetURL
	if resetURL == "" {
		resetURL = "http://localhost:" + cfg.Port + "/auth/redefinir"
	}

	return auth.NewService(users, notifier, auth.Config{
		JWTSecret:  cfg.Auth.JWTSecret,
		SessionTTL: cfg.Auth.SessionTTL,
		ResetURL:   resetURL,
	})
}
