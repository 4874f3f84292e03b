// Package client is the collaborator side of the scheduler boundary: an
// OpenAI-compatible caller whose errors are classified into the scheduler's
// Outcome taxonomy. The scheduler itself never inspects provider responses;
// that mapping lives here.
package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/longsihua2026/promptulate/keypool"
	"github.com/longsihua2026/promptulate/utils"
)

// OpenAI performs chat completions against any OpenAI-compatible endpoint,
// authenticating with whatever credential the scheduler hands it.
type OpenAI struct {
	baseURL      string
	defaultModel string
	limiter      *rate.Limiter
	logger       utils.Logger
	timeout      time.Duration
	countUsage   bool
}

type Option func(*OpenAI)

// WithRateLimit paces outbound requests client-side, on top of whatever the
// provider enforces.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *OpenAI) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

func WithLogger(logger utils.Logger) Option {
	return func(c *OpenAI) {
		c.logger = logger
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *OpenAI) {
		c.timeout = timeout
	}
}

// WithTokenAccounting logs the prompt size in tokens per call. Off by
// default: the first count for a model loads its tiktoken vocabulary.
func WithTokenAccounting() Option {
	return func(c *OpenAI) {
		c.countUsage = true
	}
}

// NewOpenAI builds a caller for the given endpoint. baseURL may be empty for
// the default OpenAI endpoint; defaultModel is used for credentials not
// bound to a model of their own.
func NewOpenAI(baseURL, defaultModel string, opts ...Option) *OpenAI {
	c := &OpenAI{
		baseURL:      baseURL,
		defaultModel: defaultModel,
		logger:       utils.NewLogger(utils.LogLevelWarn),
		timeout:      60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call returns a dispatchable operation performing one chat completion with
// the given messages. The credential's own model wins over the default.
func (c *OpenAI) Call(messages []openai.ChatCompletionMessage) keypool.CallFunc {
	return func(ctx context.Context, cred keypool.Credential) (string, keypool.Outcome, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", keypool.TransientError, err
			}
		}

		model := cred.Model
		if model == "" {
			model = c.defaultModel
		}

		start := time.Now()
		if c.countUsage {
			c.logger.Debug("Chat completion started",
				"model", model,
				"messages", len(messages),
				"prompt_tokens", c.countTokens(model, messages))
		} else {
			c.logger.Debug("Chat completion started", "model", model, "messages", len(messages))
		}

		resp, err := c.api(cred.Secret).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: messages,
		})
		if err != nil {
			outcome := Classify(err)
			c.logger.Warn("Chat completion failed",
				"model", model,
				"outcome", outcome.String(),
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err)
			return "", outcome, err
		}

		if len(resp.Choices) == 0 {
			err := errors.New("empty response: no choices returned")
			return "", keypool.TransientError, err
		}

		c.logger.Debug("Chat completion finished",
			"model", model,
			"duration_ms", time.Since(start).Milliseconds())
		return resp.Choices[0].Message.Content, keypool.Success, nil
	}
}

func (c *OpenAI) api(secret string) *openai.Client {
	cfg := openai.DefaultConfig(secret)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: c.timeout}
	return openai.NewClientWithConfig(cfg)
}

// Classify maps a provider error to the scheduler's Outcome taxonomy:
// HTTP 429 is a rate limit, 401/403 an auth failure, anything else —
// network errors, 5xx, timeouts — a transient error that leaves the
// credential's state untouched.
func Classify(err error) keypool.Outcome {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	return keypool.TransientError
}

func classifyStatus(status int) keypool.Outcome {
	switch status {
	case http.StatusTooManyRequests:
		return keypool.RateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return keypool.AuthFailure
	default:
		return keypool.TransientError
	}
}
