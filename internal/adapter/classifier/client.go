package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/V4T54L/safewatch/internal/domain"
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("classifier returned no choices")

const defaultTimeout = 60 * time.Second

// Config configures the model client.
type Config struct {
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint; empty means api.openai.com
	Model   string
	Timeout time.Duration

	HTTPClient *http.Client
}

// Client classifies posts through an OpenAI-compatible chat completion API.
// It makes exactly one request per post and never retries.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a new classifier client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger.With("component", "classifier", "model", cfg.Model),
	}
}

// Model returns the model identifier requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Classify sends the post to the model and decodes its answer. A response
// that is not valid JSON is not an error; it yields an UnparsedVerdict.
func (c *Client) Classify(ctx context.Context, post domain.RawScrapedPost) (domain.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(post),
			},
		},
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Classification{}, ErrEmptyResponse
	}

	text := resp.Choices[0].Message.Content
	verdict := ParseVerdict(text)
	if _, ok := verdict.(*domain.UnparsedVerdict); ok {
		c.logger.Warn("failed to parse classifier response as JSON", "post_id", post.PostID)
	}
	c.logger.Debug("classifier responded",
		"post_id", post.PostID,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return domain.Classification{
		Verdict:     verdict,
		RawResponse: text,
		Model:       c.model,
	}, nil
}
