package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	// Generation backend settings
	GeneratorBaseURL         string `envconfig:"GENERATOR_BASE_URL" required:"true"`
	GeneratorImageTimeoutSec int    `envconfig:"GENERATOR_IMAGE_TIMEOUT_SEC" default:"30"`
	GeneratorVideoTimeoutSec int    `envconfig:"GENERATOR_VIDEO_TIMEOUT_SEC" default:"120"`

	// Usage log write retry settings. The orchestrator retries inline with
	// exponential backoff, then hands the entry to the retry queue.
	UsageLogMaxRetries       int    `envconfig:"USAGE_LOG_MAX_RETRIES" default:"3"`
	UsageLogBackoffInitialMS int    `envconfig:"USAGE_LOG_BACKOFF_INITIAL_MS" default:"100"`
	UsageLogRetryQueueName   string `envconfig:"USAGE_LOG_RETRY_QUEUE_NAME" default:"usage_log_retry"`

	// Usage log reconciler worker settings
	UsageLogWorkerPollTimeoutSec    int    `envconfig:"USAGE_LOG_WORKER_POLL_TIMEOUT_SEC" default:"30"`
	UsageLogWorkerPollMaxMsg        int    `envconfig:"USAGE_LOG_WORKER_POLL_MAX_MSG" default:"5"`
	UsageLogWorkerMaxRetries        int    `envconfig:"USAGE_LOG_WORKER_MAX_RETRIES" default:"5"`
	UsageLogWorkerBackoffInitialSec int    `envconfig:"USAGE_LOG_WORKER_BACKOFF_INITIAL_SEC" default:"1"`
	UsageLogWorkerBackoffMaxSec     int    `envconfig:"USAGE_LOG_WORKER_BACKOFF_MAX_SEC" default:"60"`
	UsageLogDeadLetterQueueName     string `envconfig:"USAGE_LOG_DEAD_LETTER_QUEUE_NAME" default:"usage_log_retry_dlq"`

	// Stripe settings. The secret-name variants are Secret Manager resource
	// names used in production instead of raw env values.
	StripeSecretKey               string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret           string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeSecretKeySecretName     string `envconfig:"STRIPE_SECRET_KEY_SECRET_NAME"`
	StripeWebhookSecretSecretName string `envconfig:"STRIPE_WEBHOOK_SECRET_SECRET_NAME"`

	// Artifact storage (S3-compatible). The mirror is disabled when
	// STORAGE_S3_URL is empty, in which case generator URLs are stored as-is.
	S3URL       string `envconfig:"STORAGE_S3_URL"`
	S3Bucket    string `envconfig:"STORAGE_S3_BUCKET" default:"generations"`
	S3Region    string `envconfig:"STORAGE_S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"STORAGE_S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"STORAGE_S3_SECRET_KEY"`

	// Pub/Sub settings. Event publishing is disabled when the project ID is
	// empty.
	GCPProjectID      string `envconfig:"GCP_PROJECT_ID"`
	PubSubEventsTopic string `envconfig:"PUBSUB_EVENTS_TOPIC" default:"generation-events"`

	// Transactional email settings. Disabled when the base URL is empty.
	MailerBaseURL string `envconfig:"MAILER_BASE_URL"`
	MailerAPIKey  string `envconfig:"MAILER_API_KEY"`
	MailerFrom    string `envconfig:"MAILER_FROM" default:"no-reply@avatarstudio.app"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
