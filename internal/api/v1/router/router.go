package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/generator"
	"app/internal/mailer"
	"app/internal/middleware"
	"app/internal/pgmq"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the whole HTTP surface: database pool, optional S3 mirror,
// optional Pub/Sub publisher, repositories, services and handlers.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	dsn := cfg.DatabaseURL
	// Local databases usually run without SSL; production connection
	// strings carry their own sslmode.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	validate := validator.New(validator.WithRequiredStructEnabled())

	// Artifact mirroring is optional; without an S3 endpoint the service
	// keeps the backend-hosted URLs.
	var artifacts service.ArtifactMirror
	if cfg.S3URL != "" {
		s3Config, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
			awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
		)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		})
		artifacts = storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3URL, logger)
	} else {
		logger.Warn().Msg("Artifact mirroring disabled: no S3 endpoint configured")
	}

	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		publisher = p
	} else {
		logger.Warn().Msg("Event publishing disabled: no GCP project configured")
	}

	var mail mailer.Mailer
	if cfg.MailerBaseURL != "" {
		mail = mailer.NewClient(cfg.MailerBaseURL, cfg.MailerAPIKey, cfg.MailerFrom, logger)
	}

	queue := pgmq.New(pool)
	backend := generator.NewClient(
		cfg.GeneratorBaseURL,
		time.Duration(cfg.GeneratorImageTimeoutSec)*time.Second,
		time.Duration(cfg.GeneratorVideoTimeoutSec)*time.Second,
		logger,
	)

	ledgerRepo := repository.NewLedgerRepo(pool)
	accountRepo := repository.NewAccountRepo(pool)
	avatarRepo := repository.NewAvatarRepo(pool, logger)
	generationRepo := repository.NewGenerationRepo(pool, logger)
	usageRepo := repository.NewUsageRepo(pool)
	purchaseRepo := repository.NewPurchaseRepo(pool)

	genSvc := service.NewGenerationService(
		ledgerRepo,
		generationRepo,
		avatarRepo,
		usageRepo,
		backend,
		artifacts,
		queue,
		publisher,
		cfg.PubSubEventsTopic,
		cfg.UsageLogRetryQueueName,
		service.UsageRetryPolicy{
			MaxRetries:     cfg.UsageLogMaxRetries,
			InitialBackoff: time.Duration(cfg.UsageLogBackoffInitialMS) * time.Millisecond,
		},
		logger,
	)
	avatarSvc := service.NewAvatarService(avatarRepo)
	accountSvc := service.NewAccountService(accountRepo, usageRepo, purchaseRepo)
	billingSvc := service.NewBillingService(cfg, accountRepo, purchaseRepo, mail, publisher, logger)

	generationHandler := handler.NewGenerationHandler(genSvc, validate, logger)
	avatarHandler := handler.NewAvatarHandler(avatarSvc, validate, logger)
	accountHandler := handler.NewAccountHandler(accountSvc, logger)
	billingHandler := handler.NewBillingHandler(billingSvc, validate, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	generationHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	avatarHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	accountHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger, c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services. See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
