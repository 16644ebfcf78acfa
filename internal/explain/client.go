// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package explain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ClientConfig configures the LLM explanation client.
type ClientConfig struct {
	// BaseURL is the OpenAI-compatible API root (without the
	// /chat/completions suffix).
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the chat model name. Default: "llama-3.1-8b-instant".
	Model string

	// Temperature is the sampling temperature. Default: 0.7.
	Temperature float64

	// MaxTokens caps the completion length. Default: 300.
	MaxTokens int

	// Timeout bounds one upstream call. Default: 10s.
	Timeout time.Duration
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Model:       "llama-3.1-8b-instant",
		Temperature: 0.7,
		MaxTokens:   300,
		Timeout:     10 * time.Second,
	}
}

// Client generates explanations through an OpenAI-compatible
// chat-completions endpoint. Upstream calls run behind a circuit breaker:
// once the endpoint starts failing, requests short-circuit to placeholder
// text instead of stacking up timeouts.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	logger  zerolog.Logger
}

// NewClient creates an explanation client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	componentLogger := logger.With().Str("component", "explain").Logger()
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "explanation-llm",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLogger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Explanation circuit breaker state change")
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: cb,
		logger:  componentLogger,
	}
}

// chat-completions wire types, trimmed to the fields we use.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Explain generates an explanation. Failures never propagate: the Result
// carries placeholder text and the reason instead.
func (c *Client) Explain(ctx context.Context, req Request) Result {
	prompt := BuildPrompt(req)

	text, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("item_id", req.Item.ItemID).
			Msg("Explanation generation failed, using placeholder")
		return failure(err.Error())
	}
	return success(text)
}

// complete performs one chat-completions call.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a fairness-aware recommendation explanation assistant."},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // close after read is not actionable

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best-effort error context
		return "", fmt.Errorf("chat completion status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat response is empty")
	}
	return text, nil
}
