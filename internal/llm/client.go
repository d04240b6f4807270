// Package llm provides the OpenAI-compatible client behind turn narration
// and choice suggestions, plus the deterministic fallbacks used when it is
// disabled or fails.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultTimeout   = 30 * time.Second
	defaultMaxPerMin = 20
)

// ErrDisabled is returned by a client without an API key.
var ErrDisabled = errors.New("llm client not configured")

// Config configures the chat completion client.
type Config struct {
	APIKey    string        `yaml:"api_key" env:"API_KEY"`
	BaseURL   string        `yaml:"base_url" env:"BASE_URL"`
	Model     string        `yaml:"model" env:"MODEL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxTokens int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	MaxPerMin int           `yaml:"max_per_minute" env:"MAX_PER_MINUTE"`
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	api   *openai.Client
	model string

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient creates a chat completion client.
// Returns nil if the API key is empty (LLM features disabled).
func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxPerMin := cfg.MaxPerMin
	if maxPerMin <= 0 {
		maxPerMin = defaultMaxPerMin
	}
	return &Client{
		api:       openai.NewClientWithConfig(oc),
		model:     model,
		maxPerMin: maxPerMin,
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.api != nil
}

// Complete sends a system and user prompt and returns the reply text.
func (c *Client) Complete(ctx context.Context, system, userPrompt string, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	c.mu.Lock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		c.mu.Unlock()
		return "", fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}
	c.callCount++
	c.mu.Unlock()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	slog.Debug("llm call",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return resp.Choices[0].Message.Content, nil
}
