package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/V4T54L/safewatch/internal/domain"
)

const (
	notifyPath     = "/api/notify"
	apiKeyHeader   = "X-API-Key"
	defaultTimeout = 5 * time.Second
)

type request struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Client publishes events to a remote server's notify endpoint. It never
// fails the caller; delivery problems are logged.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + notifyPath,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "notify_client"),
	}
}

// Publish implements domain.EventPublisher.
func (c *Client) Publish(ctx context.Context, event domain.NotificationEvent) {
	if err := c.send(ctx, event); err != nil {
		c.logger.Warn("failed to send notification", "type", event.Type, "error", err)
	}
}

func (c *Client) send(ctx context.Context, event domain.NotificationEvent) error {
	body, err := json.Marshal(request{Type: event.Type, Message: event.Message, Data: event.Data})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify endpoint returned %s", resp.Status)
	}
	return nil
}
