// Package advisor requests agronomic recommendations from an
// OpenAI-compatible chat completion endpoint.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/nutrisense/internal/httputil"
	"github.com/lox/nutrisense/internal/metrics"
	"github.com/lox/nutrisense/internal/soil"
)

const maxPromptLength = 10000

// User-facing messages returned in place of advice when the provider fails.
const (
	MsgNotConfigured   = "⚠️ Configure GROQ_API_KEY in environment variables"
	MsgEmptyPrompt     = "⚠️ Error: Empty prompt"
	MsgPromptTooLong   = "⚠️ Error: Prompt too long"
	MsgInvalidResponse = "⚠️ Error: Invalid response from AI service"
	MsgEmptyResponse   = "⚠️ Error: Empty response from AI service"
	MsgTimeout         = "⚠️ Request timed out. Please try again."
	MsgRateLimited     = "⚠️ Rate limit exceeded. Please wait a moment and try again."
	MsgAPIKey          = "⚠️ API key issue. Please check your configuration."
	MsgUnavailable     = "⚠️ AI service temporarily unavailable. Please try again later."
)

var (
	ErrNotConfigured   = errors.New("advisor: no API key configured")
	ErrInvalidPrompt   = errors.New("advisor: invalid prompt")
	ErrInvalidResponse = errors.New("advisor: invalid response")
	ErrEmptyResponse   = errors.New("advisor: empty response")
)

// Config controls the provider connection and retry policy.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultConfig targets Groq's OpenAI-compatible API.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.3,
		MaxTokens:   600,
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	}
}

// CompletionRequest is a single chat exchange.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Completer sends a prompt to a language model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Result is the outcome of a recommendation request. Content is always
// presentable: on failure it holds a user-facing warning and Err the cause.
type Result struct {
	Task    Task
	Content string
	Model   string
	Err     error
}

// Advisor produces recommendations. It holds no global state; construct one
// per configuration.
type Advisor struct {
	cfg       Config
	completer Completer
}

// New builds an advisor backed by the OpenAI client. Without an API key the
// advisor is unconfigured and every request returns MsgNotConfigured.
func New(cfg Config) *Advisor {
	var c Completer
	if cfg.APIKey != "" {
		c = newOpenAICompleter(cfg)
	}
	return NewWithCompleter(cfg, c)
}

// NewWithCompleter builds an advisor around an arbitrary completer.
func NewWithCompleter(cfg Config, c Completer) *Advisor {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	return &Advisor{cfg: cfg, completer: c}
}

// Configured reports whether a provider is available.
func (a *Advisor) Configured() bool {
	return a.completer != nil
}

// DefaultModel is the model used when a request does not name one.
func (a *Advisor) DefaultModel() string {
	return a.cfg.Model
}

// Recommend asks the provider for advice on r. It retries transient failures
// up to the configured attempt count and never returns a raw transport error
// as content.
func (a *Advisor) Recommend(ctx context.Context, r soil.Reading, task Task, location, model string) Result {
	if model == "" {
		model = a.cfg.Model
	}
	res := Result{Task: task, Model: model}

	if a.completer == nil {
		metrics.AICallsTotal.WithLabelValues(string(task), "unconfigured").Inc()
		res.Content, res.Err = MsgNotConfigured, ErrNotConfigured
		return res
	}

	prompt := BuildPrompt(r, task, location)
	if strings.TrimSpace(prompt) == "" {
		res.Content, res.Err = MsgEmptyPrompt, ErrInvalidPrompt
		return res
	}
	if len(prompt) > maxPromptLength {
		res.Content, res.Err = MsgPromptTooLong, fmt.Errorf("%w: %d characters", ErrInvalidPrompt, len(prompt))
		return res
	}

	req := CompletionRequest{
		Model:       model,
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}

	attempt := 0
	var content string
	operation := func() error {
		attempt++
		start := time.Now()
		text, err := a.completer.Complete(ctx, req)
		metrics.AILatency.WithLabelValues(string(task)).Observe(time.Since(start).Seconds())
		if err != nil {
			log.Printf("advisor: %s attempt %d/%d: %v", task, attempt, a.cfg.MaxAttempts, err)
			if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrEmptyResponse) || isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		content = text
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.cfg.RetryDelay), uint64(a.cfg.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		metrics.AICallsTotal.WithLabelValues(string(task), "error").Inc()
		res.Content, res.Err = fallbackMessage(err), err
		return res
	}

	metrics.AICallsTotal.WithLabelValues(string(task), "ok").Inc()
	res.Content = content
	return res
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// isPermanent reports failures that retrying cannot fix.
func isPermanent(err error) bool {
	switch statusCode(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

func fallbackMessage(err error) string {
	if errors.Is(err, ErrInvalidResponse) {
		return MsgInvalidResponse
	}
	if errors.Is(err, ErrEmptyResponse) {
		return MsgEmptyResponse
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return MsgTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return MsgTimeout
	}

	switch statusCode(err) {
	case http.StatusTooManyRequests:
		return MsgRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return MsgAPIKey
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return MsgTimeout
	case strings.Contains(msg, "rate limit"):
		return MsgRateLimited
	case strings.Contains(msg, "api key"):
		return MsgAPIKey
	}
	return MsgUnavailable
}

type openAICompleter struct {
	client openai.Client
}

func newOpenAICompleter(cfg Config) *openAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httputil.NewClient(cfg.Timeout)),
		// Retries are handled by Advisor so attempts stay bounded.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAICompleter{client: openai.NewClient(opts...)}
}

func (c *openAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrInvalidResponse
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
