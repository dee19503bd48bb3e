package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// ErrGenerationFailed is returned when the generation backend rejects a
// request, returns garbage, or times out. Callers treat all of these the
// same way: the request is refunded and the error surfaces as retryable.
var ErrGenerationFailed = errors.New("generation failed")

// Generator abstracts the external content-generation backend so the
// orchestrator stays backend-agnostic.
type Generator interface {
	Generate(ctx context.Context, kind model.GenerationKind, prompt string) (string, error)
}

// Client calls an HTTP diffusion service. The call is the only long-latency
// operation in a generation request; per-kind timeouts bound it.
type Client struct {
	baseURL      string
	client       *http.Client
	imageTimeout time.Duration
	videoTimeout time.Duration
	logger       zerolog.Logger
}

// NewClient creates a generation backend client with per-kind timeouts.
func NewClient(baseURL string, imageTimeout, videoTimeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			// No client-level timeout: the per-request context carries the
			// per-kind deadline instead.
		},
		imageTimeout: imageTimeout,
		videoTimeout: videoTimeout,
		logger:       logger.With().Str("service", "GeneratorClient").Logger(),
	}
}

type generateRequest struct {
	Kind   string `json:"kind"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	URL string `json:"url"`
}

// Generate submits the prompt and returns the URL of the produced artifact.
func (c *Client) Generate(ctx context.Context, kind model.GenerationKind, prompt string) (string, error) {
	timeout := c.imageTimeout
	if kind == model.KindVideo {
		timeout = c.videoTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jsonBody, err := json.Marshal(generateRequest{Kind: string(kind), Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshaling generation request: %w", err)
	}

	url := fmt.Sprintf("%s/generate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("kind", string(kind)).Msg("Generation backend call failed")
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", string(body)).
			Msg("Generation backend returned error")
		return "", fmt.Errorf("%w: backend status %d: %s", ErrGenerationFailed, resp.StatusCode, string(body))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding backend response: %v", ErrGenerationFailed, err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: backend returned no artifact URL", ErrGenerationFailed)
	}

	c.logger.Debug().
		Str("kind", string(kind)).
		Str("duration", time.Since(start).String()).
		Msg("Generation backend succeeded")
	return out.URL, nil
}
