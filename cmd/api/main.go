package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/uootd-quotes/cmd/mainconfig"
	"github.com/wolfman30/uootd-quotes/internal/api/router"
	"github.com/wolfman30/uootd-quotes/internal/assets"
	"github.com/wolfman30/uootd-quotes/internal/auth"
	appconfig "github.com/wolfman30/uootd-quotes/internal/config"
	"github.com/wolfman30/uootd-quotes/internal/detection"
	"github.com/wolfman30/uootd-quotes/internal/jobs"
	"github.com/wolfman30/uootd-quotes/internal/kv"
	"github.com/wolfman30/uootd-quotes/internal/leads"
	"github.com/wolfman30/uootd-quotes/internal/notify"
	"github.com/wolfman30/uootd-quotes/internal/observability/metrics"
	"github.com/wolfman30/uootd-quotes/internal/quote"
	"github.com/wolfman30/uootd-quotes/internal/ratelimit"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting uootd quote API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	rdb, kvConfigured, err := kv.NewClient(kv.Options{
		RedisURL: cfg.RedisURL,
		Endpoint: cfg.KVURL,
		Token:    cfg.KVToken,
	})
	if err != nil {
		logger.Error("invalid key-value configuration, using filesystem only", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	logger.Info("storage configured", "kv", kvConfigured, "data_dir", cfg.DataDir)

	metricsHandler, quoteMetrics := setupMetrics()

	assetStore := assets.NewStore(rdb, assets.Config{
		DataDir:  cfg.DataDir,
		Mirror:   setupAssetMirror(ctx, cfg, logger),
		Logger:   logger,
		Observer: quoteMetrics,
	})

	detectors, closeDetectors := buildDetectors(ctx, cfg, logger)
	defer closeDetectors()
	detector := detection.NewChain(logger, quoteMetrics, detectors...)

	quoteService := quote.NewService(detector, assetStore, quote.Options{
		DetectionTimeout: cfg.DetectionTimeout,
		Logger:           logger,
		Observer:         quoteMetrics,
	})

	leadOpts := leads.ServiceOptions{
		Assets:      assetStore,
		PhoneRegion: cfg.DefaultPhoneRegion,
		Logger:      logger,
	}
	if notifier := notify.NewLeadNotifier(newEmailSender(cfg, logger), cfg.LeadNotifyEmail, logger); notifier != nil {
		leadOpts.Notifier = notifier
	}
	leadRepo := leads.NewStoreRepository(rdb, leads.RepositoryConfig{
		DataDir:  cfg.DataDir,
		Logger:   logger,
		Observer: quoteMetrics,
	})
	leadService := leads.NewService(leadRepo, leadOpts)

	sessions := auth.NewSessionManager(cfg.AuthJWTSecret, cfg.SessionTTL, cfg.CookieSecure)
	authenticator := auth.NewAuthenticator(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.AdminTOTPSecret)
	if !authenticator.Configured() {
		logger.Warn("admin login disabled: credentials not configured")
	}

	limiter := ratelimit.New(rdb, ratelimit.Config{
		Window: time.Duration(cfg.QuoteRateLimitWindowSeconds) * time.Second,
		Limit:  cfg.QuoteRateLimitMax,
	}, logger)

	sweeper, err := jobs.NewAssetSweeper(assetStore, cfg.AssetSweepSchedule, logger)
	if err != nil {
		logger.Error("asset sweeper disabled", "error", err)
	} else {
		sweeper.Start()
	}

	r := router.New(&router.Config{
		Logger:             logger,
		QuoteHandler:       quote.NewHandler(quoteService, logger),
		LeadsHandler:       leads.NewHandler(leadService, sessions, logger),
		AssetsHandler:      assets.NewHandler(assetStore, sessions, logger),
		AuthHandler:        auth.NewHandler(authenticator, sessions, logger),
		Sessions:           sessions,
		QuoteLimiter:       limiter,
		RateLimitObserver:  quoteMetrics,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.QuoteMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewQuoteMetrics(reg)
}

// buildDetectors returns the configured detectors in priority order:
// OpenRouter first, then Gemini.
func buildDetectors(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) ([]detection.Detector, func()) {
	var out []detection.Detector
	closeFn := func() {}

	if d := detection.NewOpenRouterDetector(detection.OpenRouterConfig{
		APIKey:  cfg.OpenRouterAPIKey,
		Model:   cfg.OpenRouterModel,
		BaseURL: cfg.OpenRouterBaseURL,
	}); d != nil {
		out = append(out, d)
	}

	gemini, err := detection.NewGeminiDetector(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	switch {
	case err != nil:
		logger.Error("gemini detector disabled", "error", err)
	case gemini != nil:
		out = append(out, gemini)
		closeFn = func() { _ = gemini.Close() }
	}

	if len(out) == 0 {
		logger.Warn("no product detector configured; quotes use default reference prices")
	}
	return out, closeFn
}

func setupAssetMirror(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *assets.S3Mirror {
	if cfg.AssetS3Bucket == "" {
		return nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("asset mirror disabled: failed to load AWS config", "error", err)
		return nil
	}
	return assets.NewS3Mirror(mainconfig.NewS3Client(awsCfg, cfg), cfg.AssetS3Bucket, logger)
}

func newEmailSender(cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		return sender
	}
	return notify.NewStubEmailSender(logger)
}
