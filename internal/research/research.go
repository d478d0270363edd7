package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orgball2608/reddit-research-bot/internal/analyzer"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/progress"
	"github.com/orgball2608/reddit-research-bot/internal/report"
	"github.com/orgball2608/reddit-research-bot/internal/retrieval"
)

var ErrNoCSV = errors.New("run has no findings to export")

// Outcome is everything a finished run hands back to the caller.
type Outcome struct {
	Run         domain.ResearchRun
	Diagnostics retrieval.Diagnostics
	Stats       analyzer.Stats
	Summary     report.Summary
	// CSV holds the export when the run found relevant posts.
	CSV      []byte
	FileName string
}

//go:generate go run go.uber.org/mock/mockgen -source=research.go -destination=mocks/mock.go
type Service interface {
	// Run executes fetch, analysis and reporting for one brand and stores the
	// result. When ctx ends the run is abandoned and ctx.Err() returned.
	Run(ctx context.Context, chatID int64, brand domain.BrandProfile, sink progress.Sink) (Outcome, error)

	// History lists a chat's latest stored runs.
	History(ctx context.Context, chatID int64, limit int) ([]domain.ResearchRun, error)

	// Export rebuilds the CSV of a stored run.
	Export(ctx context.Context, runID string) (name string, csv []byte, err error)

	// ScheduleCleanup starts the daily deletion of expired runs until ctx ends.
	ScheduleCleanup(ctx context.Context) error
}

// NoPostsMessage explains an empty retrieval, listing source errors when
// every source failed.
func NoPostsMessage(brand string, lookbackDays int, diag retrieval.Diagnostics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "No posts found for %s in the last %d days.", brand, lookbackDays)
	if !diag.AllFailed() {
		return b.String()
	}

	const shown = 5
	lines := diag.ErrorLines(0)
	if len(lines) == 0 {
		return b.String()
	}
	b.WriteString("\n\nSource errors encountered:")
	for i, line := range lines {
		if i == shown {
			fmt.Fprintf(&b, "\n... and %d more", len(lines)-shown)
			break
		}
		b.WriteString("\n- " + line)
	}
	return b.String()
}

// NoRelevantMessage explains a run where nothing survived classification.
func NoRelevantMessage(brand string, fetched int) string {
	return fmt.Sprintf("No relevant posts found for %s after filtering %d posts.\nThe posts found were not actually about the brand.", brand, fetched)
}
