package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/llm"
	apperrors "github.com/orgball2608/reddit-research-bot/pkg/errors"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(url string) *Provider {
	return New(Config{
		Name:       "groq",
		APIURL:     url + "/",
		APIKey:     "test-key",
		Model:      "llama-test",
		MaxRetries: 2,
		RetryStep:  time.Millisecond,
		LimitStep:  time.Millisecond,
	}, logger.NewNop())
}

func TestCompleteSendsChatRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-test", req.Model)
		assert.InDelta(t, 0.1, req.Temperature, 1e-9)
		assert.Equal(t, 256, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "classify this", req.Messages[0].Content)

		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  {\"relevant\": false}\n"}}]}`)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	assert.Equal(t, "groq", p.Name())

	out, err := p.Complete(context.Background(), llm.Request{Prompt: "classify this", Temperature: 0.1, MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, `{"relevant": false}`, out)
}

func TestCompleteRetriesRateLimitThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	out, err := newTestProvider(server.URL).Complete(context.Background(), llm.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteReportsPersistentRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Complete(context.Background(), llm.Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompleteFailsFastOnOtherStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		}))

		_, err := newTestProvider(server.URL).Complete(context.Background(), llm.Request{Prompt: "x"})
		assert.Error(t, err, "status %d", status)
		assert.False(t, apperrors.IsRateLimited(err))
		assert.Equal(t, int32(1), calls.Load(), "status %d", status)
		server.Close()
	}
}

func TestCompleteRejectsEmptyContent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Complete(context.Background(), llm.Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteRequiresModel(t *testing.T) {
	p := New(Config{Name: "x"}, nil)
	_, err := p.Complete(context.Background(), llm.Request{Prompt: "x"})
	assert.Error(t, err)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(apperrors.FromStatus(429)))
	assert.True(t, Retryable(apperrors.ErrTimeout))
	assert.True(t, Retryable(fmt.Errorf("connection reset")))
	assert.False(t, Retryable(apperrors.FromStatus(500)))
	assert.False(t, Retryable(apperrors.FromStatus(404)))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(fmt.Errorf("%w: x", ErrBadResponse)))
}
