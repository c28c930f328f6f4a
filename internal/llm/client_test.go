// ABOUTME: Tests for the streaming generative service client
// ABOUTME: Uses httptest SSE servers to exercise accumulation, retry and fatal paths
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseChunk(content string) string {
	b, _ := json.Marshal(openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: content}},
		},
	})
	return "data: " + string(b) + "\n\n"
}

func writeStream(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, l := range lines {
		fmt.Fprint(w, l)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func testClient(t *testing.T, url string, mutate ...func(*ClientConfig)) *Client {
	t.Helper()
	cfg := ClientConfig{
		APIBase:     url,
		APIKey:      "test-key",
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		ReadTimeout: 5 * time.Second,
		MaxTokens:   8000,
		Temperature: 0.3,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveAttempt(_, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestGenerate_AccumulatesStream(t *testing.T) {
	var (
		mu      sync.Mutex
		gotReq  openai.ChatCompletionRequest
		gotAuth string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		mu.Unlock()
		writeStream(w,
			": keep-alive\n\n",
			sseChunk("Hello"),
			"data: {not json}\n\n",
			sseChunk(", world"),
			"data: [DONE]\n\n",
			sseChunk(" (after done)"),
		)
	}))
	defer server.Close()

	text, err := testClient(t, server.URL).Generate(context.Background(), "rewrite this", "claude-opus-4-5")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "claude-opus-4-5", gotReq.Model)
	assert.True(t, gotReq.Stream)
	assert.Equal(t, 8000, gotReq.MaxTokens)
	assert.InDelta(t, 0.3, gotReq.Temperature, 0.0001)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "rewrite this", gotReq.Messages[0].Content)
}

func TestGenerate_AllFragmentsUnparseable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStream(w, "data: {oops\n\n", "data: ???\n\n", "data: [DONE]\n\n")
	}))
	defer server.Close()

	text, err := testClient(t, server.URL).Generate(context.Background(), "p", "m")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGenerate_StreamWithoutDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStream(w, sseChunk("partial "), sseChunk("answer"))
	}))
	defer server.Close()

	text, err := testClient(t, server.URL).Generate(context.Background(), "p", "m")
	require.NoError(t, err)
	assert.Equal(t, "partial answer", text)
}

func TestGenerate_ExhaustsRetriesOn503(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	obs := &recordingObserver{}
	_, err := testClient(t, server.URL, func(c *ClientConfig) { c.Observer = obs }).
		Generate(context.Background(), "p", "m")

	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.True(t, errors.Is(err, ErrRetriesExhausted))

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)

	assert.Equal(t, []string{OutcomeTransient, OutcomeTransient, OutcomeTransient}, obs.outcomes)
}

func TestGenerate_GatewayStatusesRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) == 1 {
					w.WriteHeader(status)
					return
				}
				writeStream(w, sseChunk("recovered"), "data: [DONE]\n\n")
			}))
			defer server.Close()

			text, err := testClient(t, server.URL).Generate(context.Background(), "p", "m")
			require.NoError(t, err)
			assert.Equal(t, "recovered", text)
			assert.Equal(t, int32(2), attempts.Load())
		})
	}
}

func TestGenerate_FatalStatusNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				http.Error(w, "bad request body", status)
			}))
			defer server.Close()

			_, err := testClient(t, server.URL).Generate(context.Background(), "p", "m")
			require.Error(t, err)
			assert.Equal(t, int32(1), attempts.Load())
			assert.True(t, IsFatal(err))
			assert.False(t, errors.Is(err, ErrRetriesExhausted))

			var statusErr *HTTPStatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, status, statusErr.StatusCode)
			assert.Contains(t, statusErr.Body, "bad request body")
		})
	}
}

func TestGenerate_ReadTimeoutIsRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := testClient(t, server.URL, func(c *ClientConfig) {
		c.MaxAttempts = 2
		c.ReadTimeout = 50 * time.Millisecond
	}).Generate(context.Background(), "p", "m")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestGenerate_ConnectionRefusedIsRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := testClient(t, url, func(c *ClientConfig) { c.MaxAttempts = 2 }).
		Generate(context.Background(), "p", "m")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
}

func TestGenerate_CancelledContextIsFatal(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := testClient(t, server.URL, func(c *ClientConfig) {
		c.BackoffBase = time.Hour
		c.Observer = observerFunc(func() { cancel() })
	}).Generate(ctx, "p", "m")

	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), attempts.Load())
}

type observerFunc func()

func (f observerFunc) ObserveAttempt(string, string, time.Duration) { f() }

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(ClientConfig{APIBase: "http://localhost"})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts, c.cfg.MaxAttempts)
	assert.Equal(t, DefaultReadTimeout, c.cfg.ReadTimeout)
	assert.Equal(t, DefaultConnectTimeout, c.cfg.ConnectTimeout)
	assert.Equal(t, DefaultMaxTokens, c.cfg.MaxTokens)
	assert.Equal(t, DefaultReadTimeout, c.http.Timeout)
}
