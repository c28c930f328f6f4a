// ABOUTME: Resilient streaming client for an OpenAI-compatible chat completions endpoint
// ABOUTME: Accumulates streamed text and retries gateway errors and timeouts with linear backoff
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/harper/refinery/internal/logging"
	"github.com/harper/refinery/internal/util"
)

// Defaults applied when a ClientConfig field is zero
const (
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 5 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 600 * time.Second
	DefaultMaxTokens      = 8000

	maxErrorBody  = 4 << 10
	maxStreamLine = 1 << 20
)

// Observer receives per-attempt outcomes; implementations must be safe for concurrent use
type Observer interface {
	ObserveAttempt(model, outcome string, elapsed time.Duration)
}

// Attempt outcomes reported to the Observer
const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomeFatal     = "fatal"
)

// ClientConfig holds configuration for the streaming client
type ClientConfig struct {
	APIBase        string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	MaxTokens      int
	Temperature    float32
	// HTTPClient overrides the client built from the timeouts
	HTTPClient *http.Client
	Observer   Observer
	Logger     *zap.Logger
}

// Client calls the generative service; it knows nothing about segments or units
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client with the given configuration
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("generative service URL is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase < 0 {
		cfg.BackoffBase = 0
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
		transport.TLSHandshakeTimeout = cfg.ConnectTimeout
		httpClient = &http.Client{Transport: transport, Timeout: cfg.ReadTimeout}
	}

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logging.OrNop(cfg.Logger).Named("llm"),
	}, nil
}

// Generate sends prompt to model and returns the accumulated streamed text.
// Transient failures are retried up to MaxAttempts in total, waiting
// BackoffBase times the attempt number in between; running out yields an
// *ExhaustedError. Any other failure is returned at once.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	var last error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		text, err := c.stream(ctx, prompt, model)
		elapsed := time.Since(start)

		if err == nil {
			c.observe(model, OutcomeSuccess, elapsed)
			if attempt > 1 {
				c.logger.Info("generation succeeded after retry", zap.String("model", model), zap.Int("attempt", attempt))
			}
			return text, nil
		}
		if !IsTransient(err) {
			c.observe(model, OutcomeFatal, elapsed)
			return "", err
		}
		c.observe(model, OutcomeTransient, elapsed)
		last = err

		if attempt == c.cfg.MaxAttempts {
			break
		}
		wait := util.LinearBackoff(c.cfg.BackoffBase, attempt)
		c.logger.Warn("generation attempt failed, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err))
		if err := util.Sleep(ctx, wait); err != nil {
			return "", NewFatalError(fmt.Errorf("cancelled while waiting to retry: %w", err))
		}
	}

	c.logger.Error("generation failed, retries exhausted",
		zap.String("model", model), zap.Int("attempts", c.cfg.MaxAttempts), zap.Error(last))
	return "", &ExhaustedError{Attempts: c.cfg.MaxAttempts, Last: last}
}

func (c *Client) stream(ctx context.Context, prompt, model string) (string, error) {
	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Stream:      true,
	})
	if err != nil {
		return "", NewFatalError(fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase, bytes.NewReader(body))
	if err != nil {
		return "", NewFatalError(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", classifyStatus(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var sb strings.Builder
	skipped := 0
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxStreamLine)
	for scanner.Scan() {
		frag := DecodeFragment(scanner.Text())
		switch frag.Kind {
		case FragmentContent:
			sb.WriteString(frag.Content)
		case FragmentDone:
			c.logSkipped(model, skipped)
			return sb.String(), nil
		case FragmentUnparseable:
			skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return "", classifyTransport(ctx, fmt.Errorf("stream interrupted: %w", err))
	}
	c.logSkipped(model, skipped)
	return sb.String(), nil
}

func (c *Client) logSkipped(model string, skipped int) {
	if skipped > 0 {
		c.logger.Debug("skipped unparseable stream fragments", zap.String("model", model), zap.Int("count", skipped))
	}
}

func (c *Client) observe(model, outcome string, elapsed time.Duration) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveAttempt(model, outcome, elapsed)
	}
}

// classifyTransport treats connection and read failures as transient,
// unless the caller's own context ended the call
func classifyTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return NewFatalError(fmt.Errorf("call cancelled: %w", err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTransientError(fmt.Errorf("call timed out: %w", err))
	}
	return NewTransientError(err)
}
