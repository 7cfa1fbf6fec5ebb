package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"kakeibo/internal/auth"
	"kakeibo/internal/backend"
	"kakeibo/internal/cache"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	apphttp "kakeibo/internal/http"
	"kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/services"
)

const (
	reportCacheSize = 1000
	maxSessions     = 10000
)

func main() {
	cfg, logger, err := cli.Bootstrap(log.ComponentApp)
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting kakeibo",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"events_backend", cfg.EventsBackend,
		"auth_mode", cfg.AuthMode)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger).Server(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer b.Close()

	caches := cache.NewManager(logger)
	reportCache := cache.NewLRUCache[any](reportCacheSize, cfg.CacheTTL)
	caches.Register(reportCache)

	reports := services.NewReportService(b.Store, reportCache, logger)
	ledger := services.NewLedgerService(b.Store, b.Publisher, reports, logger)

	deps := apphttp.Deps{
		Ledger:    ledger,
		Reports:   reports,
		Store:     b.Store,
		Logger:    logger,
		RateLimit: ratelimit.DefaultConfig(),
	}
	switch cfg.AuthMode {
	case config.AuthGoogle:
		sessions := auth.NewSessionStore(maxSessions, cfg.SessionTTL)
		caches.Register(sessions.Cache())
		google := auth.NewGoogleAuth(auth.GoogleOptions{
			ClientID:      cfg.GoogleOAuthClientID,
			ClientSecret:  cfg.GoogleOAuthClientSecret,
			RedirectURL:   cfg.GoogleOAuthRedirectURL,
			SecureCookies: strings.HasPrefix(cfg.GoogleOAuthRedirectURL, "https://"),
		}, sessions, logger)
		deps.Auth, deps.Google = google, google
	default:
		deps.Auth = auth.NewHeaderAuth(cfg.AuthHeader, logger)
	}

	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", log.FieldError, err)
		}
	}

	_ = cli.Shutdown(logger, 30*time.Second,
		srv.Shutdown,
		func(context.Context) error { caches.Stop(); return nil },
	)
}
