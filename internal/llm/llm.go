package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/orgball2608/reddit-research-bot/internal/metrics"
	apperrors "github.com/orgball2608/reddit-research-bot/pkg/errors"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
)

var (
	ErrNoProviders    = errors.New("no llm providers configured")
	ErrAllRateLimited = errors.New("all llm providers are rate limited")
	ErrExhausted      = errors.New("all llm providers failed")
)

type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

//go:generate go run go.uber.org/mock/mockgen -source=llm.go -destination=mocks/mock.go
type Provider interface {
	Name() string
	// Complete returns the raw message content. Rate limiting that survives
	// the provider's own retries is reported as an error wrapping
	// errors.ErrRateLimited.
	Complete(ctx context.Context, req Request) (string, error)
}

// State tracks which providers hit their rate limit during the current batch
// cycle. It belongs to one classification run.
type State struct {
	mu      sync.Mutex
	limited map[string]bool
}

func NewState() *State {
	return &State{limited: make(map[string]bool)}
}

// Reset clears every flag. Called at the start of each batch.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.limited)
}

func (s *State) MarkLimited(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limited[provider] = true
}

func (s *State) IsLimited(provider string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limited[provider]
}

func (s *State) AnyLimited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.limited {
		if v {
			return true
		}
	}
	return false
}

// Chain tries providers in order until one answers.
type Chain struct {
	providers []Provider
	metrics   *metrics.Collector
	log       logger.Logger
}

func NewChain(providers []Provider, log logger.Logger, m *metrics.Collector) *Chain {
	if log == nil {
		log = logger.NewNop()
	}
	return &Chain{
		providers: providers,
		metrics:   m,
		log:       log.WithComponent("LLMChain"),
	}
}

func (c *Chain) Empty() bool { return len(c.providers) == 0 }

func (c *Chain) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// AllLimited reports whether every provider is flagged in st.
func (c *Chain) AllLimited(st *State) bool {
	if len(c.providers) == 0 {
		return false
	}
	for _, p := range c.providers {
		if !st.IsLimited(p.Name()) {
			return false
		}
	}
	return true
}

// Complete sends req to the first provider not flagged in st that succeeds.
// A provider that fails with a rate limit is flagged for the rest of the cycle.
// When nothing answers the error wraps ErrAllRateLimited if every provider is
// now flagged, ErrExhausted otherwise.
func (c *Chain) Complete(ctx context.Context, st *State, req Request) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for _, p := range c.providers {
		name := p.Name()
		if st.IsLimited(name) {
			c.metrics.RecordLLMCall(name, "skipped")
			continue
		}

		out, err := p.Complete(ctx, req)
		if err == nil {
			c.metrics.RecordLLMCall(name, "success")
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		lastErr = err
		if apperrors.IsRateLimited(err) {
			st.MarkLimited(name)
			c.metrics.RecordLLMCall(name, "rate_limited")
			c.log.Warn("Provider rate limited for this batch", "provider", name)
			continue
		}
		c.metrics.RecordLLMCall(name, "error")
		c.log.Warn("Provider failed, trying next", "provider", name, "error", err)
	}

	if c.AllLimited(st) {
		return "", ErrAllRateLimited
	}
	if lastErr == nil {
		return "", ErrExhausted
	}
	return "", fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
