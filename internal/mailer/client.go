package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Email is one transactional message.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Mailer sends transactional email. Sends are best-effort everywhere they
// are used; failures are logged, never propagated to the API caller.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// Client posts to a Resend-style HTTP email API.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
	logger  zerolog.Logger
}

// NewClient creates an email API client.
func NewClient(baseURL, apiKey, from string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("service", "Mailer").Logger(),
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (c *Client) Send(ctx context.Context, e Email) error {
	jsonBody, err := json.Marshal(sendRequest{From: c.from, To: e.To, Subject: e.Subject, HTML: e.HTML})
	if err != nil {
		return fmt.Errorf("marshaling email: %w", err)
	}

	url := fmt.Sprintf("%s/emails", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error().Int("status_code", resp.StatusCode).Str("error_body", string(body)).Msg("Email API returned error")
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}
