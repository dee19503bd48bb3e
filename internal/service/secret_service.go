package service

import (
	"context"
	"fmt"

	"app/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretService reads deployment secrets from Google Secret Manager. In
// production the Stripe keys are loaded from secret names instead of raw
// environment values.
type SecretService interface {
	AccessSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretService struct {
	client    *secretmanager.Client
	projectID string
}

// NewSecretService creates a Secret Manager client for the configured project.
func NewSecretService(ctx context.Context, cfg *config.Config) (SecretService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is not set")
	}
	var opts []option.ClientOption
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretService{client: client, projectID: cfg.GCPProjectID}, nil
}

// AccessSecret returns the latest version of the named secret.
func (s *secretService) AccessSecret(ctx context.Context, name string) (string, error) {
	versionPath := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: versionPath,
	})
	if err != nil {
		return "", fmt.Errorf("accessing secret %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}

func (s *secretService) Close() error {
	return s.client.Close()
}

// LoadStripeSecrets fills in the Stripe keys from Secret Manager when
// secret names are configured and the raw env values are absent.
func LoadStripeSecrets(ctx context.Context, cfg *config.Config, secrets SecretService) error {
	if cfg.StripeSecretKey == "" && cfg.StripeSecretKeySecretName != "" {
		key, err := secrets.AccessSecret(ctx, cfg.StripeSecretKeySecretName)
		if err != nil {
			return err
		}
		cfg.StripeSecretKey = key
	}
	if cfg.StripeWebhookSecret == "" && cfg.StripeWebhookSecretSecretName != "" {
		secret, err := secrets.AccessSecret(ctx, cfg.StripeWebhookSecretSecretName)
		if err != nil {
			return err
		}
		cfg.StripeWebhookSecret = secret
	}
	return nil
}
