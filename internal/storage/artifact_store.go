package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ArtifactStore copies generator output into project-owned storage so the
// persisted URL outlives the backend's temporary link.
type ArtifactStore interface {
	// Mirror downloads sourceURL and re-uploads it under key, returning
	// the durable URL.
	Mirror(ctx context.Context, key, sourceURL string) (string, error)
	// PresignGet returns a time-limited download URL for a stored object.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// S3Store is an ArtifactStore backed by an S3-compatible bucket (Supabase
// storage in every current deployment).
type S3Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	httpClient *http.Client
	bucket     string
	baseURL    string
	logger     zerolog.Logger
}

// maxArtifactBytes bounds the mirrored download; generator outputs above
// this are stored by their original URL instead.
const maxArtifactBytes = 256 << 20

// NewS3Store creates an artifact store over the given S3 client.
func NewS3Store(client *s3.Client, bucket, baseURL string, logger zerolog.Logger) *S3Store {
	return &S3Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		bucket:     bucket,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With().Str("service", "S3Store").Logger(),
	}
}

func (s *S3Store) Mirror(ctx context.Context, key, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating artifact download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("artifact download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading artifact body: %w", err)
	}
	if len(body) > maxArtifactBytes {
		return "", fmt.Errorf("artifact exceeds %d bytes", maxArtifactBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading artifact %s: %w", key, err)
	}

	url := fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
	s.logger.Debug().Str("key", key).Int("bytes", len(body)).Msg("Artifact mirrored")
	return url, nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presigning GET for %s: %w", key, err)
	}
	return req.URL, nil
}
