package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/llm"
	apperrors "github.com/orgball2608/reddit-research-bot/pkg/errors"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/orgball2608/reddit-research-bot/pkg/retry"
)

// ErrBadResponse marks a 2xx answer that carries no usable message.
var ErrBadResponse = errors.New("openai: bad response")

type Config struct {
	Name    string
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration

	MaxRetries uint64
	// RetryStep spaces retries after transport failures, LimitStep after 429s.
	RetryStep time.Duration
	LimitStep time.Duration
	Clock     clockwork.Clock
}

// Provider talks to any OpenAI-compatible chat completions endpoint.
type Provider struct {
	name   string
	client *http.Client
	apiURL string
	apiKey string
	model  string
	retry  retry.Config
	log    logger.Logger
}

var _ llm.Provider = (*Provider)(nil)

func New(cfg Config, log logger.Logger) *Provider {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.RetryStep <= 0 {
		cfg.RetryStep = time.Second
	}
	if cfg.LimitStep <= 0 {
		cfg.LimitStep = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &Provider{
		name:   name,
		client: &http.Client{Timeout: timeout},
		apiURL: apiURL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		retry: retry.Config{
			MaxRetries: cfg.MaxRetries,
			Backoff:    retry.LinearBlocked(cfg.RetryStep, cfg.LimitStep),
			Retryable:  Retryable,
			Clock:      cfg.Clock,
		},
		log: log.WithComponent("LLM:" + name),
	}
}

func (p *Provider) Name() string {
	return p.name
}

// Complete posts one user message and returns the first choice's content.
// 429s and transport failures are retried; any other status or an unusable
// body fails at once.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	if p.model == "" {
		return "", fmt.Errorf("%s: model is required", p.name)
	}
	payload, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	var content string
	err = retry.Do(ctx, p.log, p.name+" completion", func() error {
		out, callErr := p.call(ctx, payload)
		if callErr != nil {
			return callErr
		}
		content = out
		return nil
	}, p.retry)
	if err != nil {
		return "", err
	}
	return content, nil
}

func (p *Provider) call(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%s: create request: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if apperrors.IsTimeout(err) {
			return "", fmt.Errorf("%s: %w: %w", p.name, apperrors.ErrTimeout, err)
		}
		return "", fmt.Errorf("%s: request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	if statusErr := apperrors.FromStatus(resp.StatusCode); statusErr != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		p.log.Debug("Provider returned error status", "status", resp.StatusCode, "body", strings.TrimSpace(string(body)))
		return "", fmt.Errorf("%s: %w", p.name, statusErr)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %s: decode: %v", ErrBadResponse, p.name, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: no choices", ErrBadResponse, p.name)
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: %s: empty content", ErrBadResponse, p.name)
	}
	return content, nil
}

// Retryable reports whether a completion failure is worth another attempt.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrBadResponse):
		return false
	case apperrors.IsRateLimited(err), apperrors.IsTimeout(err):
		return true
	}
	// Any other HTTP status is final.
	return !strings.HasPrefix(apperrors.GetCode(err), "http_")
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}
