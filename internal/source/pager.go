package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	apperrors "github.com/orgball2608/reddit-research-bot/pkg/errors"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/orgball2608/reddit-research-bot/pkg/retry"
)

// Page is one upstream response page.
type Page struct {
	Posts []domain.Post
	// Cursor points at the next page. Empty means there is none.
	Cursor string
}

// PageFunc fetches the page that starts at cursor. The first call gets "".
type PageFunc func(ctx context.Context, cursor string) (Page, error)

// Pager drives PageFuncs with a shared retry policy and inter-page delay.
type Pager struct {
	Retry  retry.Config
	Delay  time.Duration
	Clock  clockwork.Clock
	Logger logger.Logger
}

// NewPager builds the pager used by every adapter from process config.
func NewPager(cfg *config.Config, log logger.Logger) Pager {
	return Pager{
		Retry: retry.Config{
			MaxRetries: cfg.Reddit.MaxRetries,
			Backoff:    retry.LinearBlocked(cfg.Reddit.RetryStep, cfg.Reddit.BlockedStep),
			Retryable:  Retryable,
		},
		Delay:  cfg.Reddit.PageDelay,
		Logger: log,
	}
}

// Retryable reports whether a page failure deserves another attempt.
// Client errors other than blocking statuses are final.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case apperrors.IsBadRequest(err), apperrors.IsNotFound(err):
		return false
	default:
		return true
	}
}

// Collect pages through fetch until a page is empty, short, the cursor is
// missing or repeats, maxPages is reached, or ctx is done. When a page fails
// after retries the posts gathered so far are returned with the error.
func (p Pager) Collect(ctx context.Context, label string, limit, maxPages int, fetch PageFunc) ([]domain.Post, error) {
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	rc := p.Retry
	if rc.Clock == nil {
		rc.Clock = clock
	}

	var (
		posts  []domain.Post
		cursor string
	)

	for page := 0; page < maxPages; page++ {
		if page > 0 {
			if err := retry.Sleep(ctx, clock, p.Delay); err != nil {
				return posts, err
			}
		}

		var pg Page
		err := retry.Do(ctx, log, label, func() error {
			var fetchErr error
			pg, fetchErr = fetch(ctx, cursor)
			return fetchErr
		}, rc)
		if err != nil {
			log.Error("Page failed after retries", "query", label, "page", page, "error", err)
			return posts, fmt.Errorf("%s page %d: %w", label, page, err)
		}

		for _, post := range pg.Posts {
			if post.ID != "" {
				posts = append(posts, post)
			}
		}

		if len(pg.Posts) == 0 || len(pg.Posts) < limit {
			break
		}
		if pg.Cursor == "" || pg.Cursor == cursor {
			break
		}
		cursor = pg.Cursor
	}

	return posts, nil
}
