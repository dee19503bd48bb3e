package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"app/internal/api/v1/router"
	"app/internal/config"
	"app/internal/logger"
	"app/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx := context.Background()

	// In production the Stripe keys come from Secret Manager rather than
	// raw environment values.
	if cfg.StripeSecretKeySecretName != "" || cfg.StripeWebhookSecretSecretName != "" {
		secrets, err := service.NewSecretService(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create secret service: %v", err)
		}
		if err := service.LoadStripeSecrets(ctx, cfg, secrets); err != nil {
			logger.Fatal().Msgf("Failed to load Stripe secrets: %v", err)
		}
		secrets.Close()
	}

	r, pool, err := router.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer pool.Close()

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// Video generation holds the response open for up to two minutes,
		// so the write timeout must outlast the backend deadline.
		WriteTimeout: time.Duration(cfg.GeneratorVideoTimeoutSec+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Msgf("Server forced to shutdown: %v", err)
	}
	logger.Info().Msg("Server shut down gracefully")
}
