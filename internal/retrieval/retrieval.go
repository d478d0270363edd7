package retrieval

import (
	"context"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/progress"
)

// DefaultLookback is the research window when none is configured.
const DefaultLookback = 90 * 24 * time.Hour

type Result struct {
	// Posts are unique by ID, newest first, all inside the lookback window.
	Posts       []domain.Post
	Diagnostics Diagnostics
}

//go:generate go run go.uber.org/mock/mockgen -source=retrieval.go -destination=mocks/mock.go
type Client interface {
	// Fetch gathers posts for brand from every configured source. Source
	// failures never fail the call: they are reported in the diagnostics.
	// An error is returned only for an invalid brand or when ctx ends, and in
	// the latter case the partial result is still returned.
	Fetch(ctx context.Context, brand domain.BrandProfile, lookback time.Duration, sink progress.Sink) (Result, error)
}
