package analyzer

import (
	"context"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/progress"
)

// Stats counts how each post was decided.
type Stats struct {
	Batch       int
	Single      int
	Keyword     int
	NotRelevant int
}

type Result struct {
	// Findings holds only relevant posts, in input order.
	Findings []domain.Finding
	Stats    Stats
}

//go:generate go run go.uber.org/mock/mockgen -source=analyzer.go -destination=mocks/mock.go
type Analyzer interface {
	// Analyze classifies posts in fixed-size batches and reports progress
	// after each batch. Provider trouble never fails the call; every post is
	// decided by some rung of the ladder. On cancellation the findings made so
	// far are returned with ctx.Err().
	Analyze(ctx context.Context, posts []domain.Post, brand domain.BrandProfile, sink progress.Sink) (Result, error)
}
