package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"bookmarket/internal/app"
	"bookmarket/internal/config"
	"bookmarket/internal/ratelimit"
	"bookmarket/internal/server"
	"bookmarket/internal/util"
	"bookmarket/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tokenTTL, err := config.ParseTokenTTL(cfg.TokenTTL)
	if err != nil {
		log.Fatalf("failed to parse token TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var covers storage.CoverStore
	if cfg.MinioEndpoint != "" {
		covers, err = storage.NewMinioCoverStore(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioBucket, cfg.MinioUseSSL,
		)
		if err != nil {
			log.Fatalf("failed to init cover storage: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		JWTSecret:     cfg.JWTSecret,
		TokenTTL:      tokenTTL,
		Covers:        covers,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitPerWindow > 0 && cfg.RedisAddr != "" {
		window, err := config.ParseRateLimitWindow(cfg.RateLimitWindow)
		if err != nil {
			log.Fatalf("failed to parse rate limit window: %v", err)
		}
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "bookmarket:ratelimit",
			cfg.RateLimitPerWindow, window,
		)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		AllowedOrigins: config.ParseAllowedOrigins(cfg.AllowedOrigins),
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("bookstore server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
