package run

import (
	"context"
	"errors"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
)

var ErrNotFound = errors.New("research run not found")

//go:generate go run go.uber.org/mock/mockgen -source=run.go -destination=mocks/mock.go
type Repository interface {
	// Create stores a run together with its findings in one transaction.
	Create(ctx context.Context, run domain.ResearchRun) error

	// ListByChat returns the latest runs of a chat, newest first, without findings.
	ListByChat(ctx context.Context, chatID int64, limit int) ([]domain.ResearchRun, error)

	// Get returns one run with its findings.
	Get(ctx context.Context, id string) (domain.ResearchRun, error)

	// CleanupOlderThan deletes runs finished before cutoff and returns how many went.
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
