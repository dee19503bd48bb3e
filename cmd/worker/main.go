package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"app/internal/config"
	"app/internal/logger"
	"app/internal/pgmq"
	"app/internal/repository"
	"app/internal/worker/usagelog"

	"github.com/jackc/pgx/v5/pgxpool"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dsn := cfg.DatabaseURL
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	pgmqClient := pgmq.New(pool)
	usageRepo := repository.NewUsageRepo(pool)

	if err := usagelog.Run(ctx, logger, cfg, pgmqClient, usageRepo); err != nil {
		logger.Fatal().Msgf("Usage-log reconciler failed: %v", err)
	}
	logger.Info().Msg("Usage-log reconciler stopped gracefully")
}
